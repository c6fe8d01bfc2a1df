// Package search orchestrates one quota-governed lead search: quota check,
// provider call, scoring, deduplication, and transactional persistence.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscout/internal/ledger"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scorer"
	"github.com/sells-group/leadscout/pkg/places"
)

// MaxRadiusKm caps the search radius accepted from callers.
const MaxRadiusKm = 50

// Repository is the slice of the store the orchestrator writes through.
type Repository interface {
	SaveSearch(ctx context.Context, rec model.SearchRecord, businesses []model.Business) (string, error)
}

// Request is one search invocation.
type Request struct {
	Query      string  `json:"query"`
	Location   string  `json:"location"`
	RadiusKm   float64 `json:"radius_km"`
	MaxResults int     `json:"max_results"`
}

// Result is the outcome of a completed search.
type Result struct {
	SearchID   string           `json:"search_id"`
	Businesses []model.Business `json:"businesses"`
	Count      int              `json:"count"`
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator coordinates the ledger, the provider, the scorer, and the
// repository for each search.
type Orchestrator struct {
	provider places.Client
	ledger   *ledger.Ledger
	repo     Repository
	now      func() time.Time
}

// New creates a search orchestrator.
func New(provider places.Client, ldg *ledger.Ledger, repo Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		ledger:   ldg,
		repo:     repo,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs one search. The quota is charged before the provider call and
// is not refunded if the call fails; that guarantees the provider is never
// invoked past the limit.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.Location = strings.TrimSpace(req.Location)
	if err := validate(req); err != nil {
		return nil, err
	}

	decision, err := o.ledger.CheckAndReserve(ctx, 1)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		zap.L().Info("search refused by quota",
			zap.String("query", req.Query),
			zap.Int("calls_remaining", decision.CallsRemaining),
		)
		return nil, &QuotaExceededError{Decision: decision}
	}

	found, err := o.provider.Search(ctx, req.Query, req.Location, req.RadiusKm, req.MaxResults)
	if err != nil {
		return nil, err
	}

	searchID := uuid.NewString()
	now := o.now().UTC()

	businesses := assemble(found, searchID, now)

	rec := model.SearchRecord{
		ID:          searchID,
		Query:       req.Query,
		Location:    req.Location,
		RadiusKm:    req.RadiusKm,
		MaxResults:  req.MaxResults,
		ResultCount: len(businesses),
		CreatedAt:   now,
	}
	if _, err := o.repo.SaveSearch(ctx, rec, businesses); err != nil {
		return nil, &PersistenceError{Charged: true, Err: err}
	}

	zap.L().Info("search completed",
		zap.String("search_id", searchID),
		zap.String("query", req.Query),
		zap.String("location", req.Location),
		zap.Int("results", len(businesses)),
		zap.Int("calls_remaining", decision.CallsRemaining),
	)

	return &Result{SearchID: searchID, Businesses: businesses, Count: len(businesses)}, nil
}

// ExecuteMany runs several searches with bounded parallelism. Results keep
// request order; the first error cancels the remaining searches.
func (o *Orchestrator) ExecuteMany(ctx context.Context, reqs []Request, concurrency int) ([]*Result, error) {
	if concurrency <= 0 {
		concurrency = 3
	}

	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := o.Execute(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func validate(req Request) error {
	if req.Query == "" {
		return &ValidationError{Field: "query", Detail: "must not be empty"}
	}
	if req.Location == "" {
		return &ValidationError{Field: "location", Detail: "must not be empty"}
	}
	if req.RadiusKm <= 0 {
		return &ValidationError{Field: "radius_km", Detail: "must be positive"}
	}
	if req.RadiusKm > MaxRadiusKm {
		return &ValidationError{Field: "radius_km", Detail: fmt.Sprintf("must be at most %d", MaxRadiusKm)}
	}
	if req.MaxResults < 1 || req.MaxResults > places.ProviderMaxResults {
		return &ValidationError{Field: "max_results", Detail: fmt.Sprintf("must be between 1 and %d", places.ProviderMaxResults)}
	}
	return nil
}

// assemble scores, deduplicates, and orders provider records. Duplicates by
// place_id keep the first occurrence; output is sorted by score descending,
// then review count descending, with provider order breaking remaining ties.
func assemble(found []places.Place, searchID string, now time.Time) []model.Business {
	seen := make(map[string]struct{}, len(found))
	businesses := make([]model.Business, 0, len(found))

	for _, p := range found {
		if _, dup := seen[p.PlaceID]; dup {
			continue
		}
		seen[p.PlaceID] = struct{}{}

		b := model.Business{
			PlaceID:     p.PlaceID,
			Name:        p.Name,
			Address:     p.Address,
			Phone:       p.Phone,
			Website:     p.Website,
			Rating:      p.Rating,
			ReviewCount: p.ReviewCount,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Types:       p.Types,
			SearchID:    searchID,
			CreatedAt:   now,
		}
		b.LeadScore = scorer.Score(b)
		businesses = append(businesses, b)
	}

	sort.SliceStable(businesses, func(i, j int) bool {
		if businesses[i].LeadScore != businesses[j].LeadScore {
			return businesses[i].LeadScore > businesses[j].LeadScore
		}
		return reviews(businesses[i]) > reviews(businesses[j])
	})
	return businesses
}

func reviews(b model.Business) int {
	if b.ReviewCount == nil {
		return 0
	}
	return *b.ReviewCount
}
