package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/export"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/search"
	"github.com/sells-group/leadscout/internal/store"
	"github.com/sells-group/leadscout/pkg/places"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchResponse echoes the request alongside the results so the caller can
// render a run without correlating it back to what they sent.
type searchResponse struct {
	SearchID   string               `json:"search_id"`
	Query      string               `json:"query"`
	Location   string               `json:"location"`
	RadiusKm   float64              `json:"radius_km"`
	Count      int                  `json:"count"`
	Businesses []model.Business     `json:"businesses"`
	APIUsage   *model.UsageSnapshot `json:"api_usage,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.orch.Execute(r.Context(), req)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}

	body := searchResponse{
		SearchID:   res.SearchID,
		Query:      req.Query,
		Location:   req.Location,
		RadiusKm:   req.RadiusKm,
		Count:      res.Count,
		Businesses: res.Businesses,
	}
	if snap, err := s.ledger.Usage(r.Context()); err == nil {
		body.APIUsage = &snap
	} else {
		zap.L().Warn("usage snapshot failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, body)
}

// writeSearchError maps orchestrator failures onto HTTP statuses. Internal
// detail stays in the logs; the body carries only the machine-readable kind
// and a human-readable reason.
func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	var verr *search.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	var qerr *search.QuotaExceededError
	if errors.As(err, &qerr) {
		writeError(w, http.StatusTooManyRequests, qerr.Error())
		return
	}

	var perr *places.ProviderError
	if errors.As(err, &perr) {
		zap.L().Error("provider call failed", zap.String("kind", string(perr.Kind)), zap.Error(err))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("search provider failed (%s)", perr.Kind))
		return
	}

	var serr *search.PersistenceError
	if errors.As(err, &serr) {
		zap.L().Error("persistence failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, serr.Error())
		return
	}

	zap.L().Error("search failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Usage(r.Context())
	if err != nil {
		zap.L().Error("usage lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read usage")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	records, err := s.store.ListSearchHistory(r.Context(), limit)
	if err != nil {
		zap.L().Error("history lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	if records == nil {
		records = []model.SearchRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": records, "count": len(records)})
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	businesses, total, err := s.store.ListBusinesses(r.Context(), filter)
	if err != nil {
		zap.L().Error("business listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list businesses")
		return
	}
	if businesses == nil {
		businesses = []model.Business{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"businesses": businesses, "total": total})
}

func (s *Server) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "place_id")

	b, err := s.store.GetBusiness(r.Context(), placeID)
	if err != nil {
		zap.L().Error("business lookup failed", zap.String("place_id", placeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read business")
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.SummaryStats(r.Context())
	if err != nil {
		zap.L().Error("stats lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Export ignores pagination and dumps every match.
	filter.Limit = -1
	filter.Offset = 0

	businesses, _, err := s.store.ListBusinesses(r.Context(), filter)
	if err != nil {
		zap.L().Error("export query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not export businesses")
		return
	}

	filename := "leads-" + time.Now().UTC().Format("20060102-150405") + "." + string(format)
	if format == export.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.Write(w, format, businesses); err != nil {
		zap.L().Error("export write failed", zap.Error(err))
	}
}

func parseFilter(r *http.Request) (store.BusinessFilter, error) {
	q := r.URL.Query()
	filter := store.BusinessFilter{
		SearchID: q.Get("search_id"),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}

	if raw := q.Get("has_website"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return store.BusinessFilter{}, fmt.Errorf("invalid has_website: %q", raw)
		}
		filter.HasWebsite = &v
	}
	if raw := q.Get("min_rating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 5 {
			return store.BusinessFilter{}, fmt.Errorf("invalid min_rating: %q", raw)
		}
		filter.MinRating = &v
	}
	return filter, nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("response encoding failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
