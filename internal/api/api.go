// Package api exposes the lead search service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/ledger"
	"github.com/sells-group/leadscout/internal/search"
	"github.com/sells-group/leadscout/internal/store"
)

// Server holds the handlers' dependencies.
type Server struct {
	orch   *search.Orchestrator
	ledger *ledger.Ledger
	store  store.Store
	cfg    config.ServerConfig
}

// NewServer creates the API server.
func NewServer(orch *search.Orchestrator, ldg *ledger.Ledger, st store.Store, cfg config.ServerConfig) *Server {
	return &Server{
		orch:   orch,
		ledger: ldg,
		store:  st,
		cfg:    cfg,
	}
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(newIPRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst).middleware)

		r.Post("/api/search", s.handleSearch)
		r.Get("/api/search/usage", s.handleUsage)
		r.Get("/api/search/history", s.handleHistory)

		r.Get("/api/businesses", s.handleListBusinesses)
		r.Get("/api/businesses/export", s.handleExport)
		r.Get("/api/businesses/stats/summary", s.handleStats)
		r.Get("/api/businesses/{place_id}", s.handleGetBusiness)
	})

	return r
}

// requestLogger logs each request with latency and status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
