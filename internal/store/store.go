// Package store is the persistence boundary: search history, discovered
// businesses, and the monthly API usage counter.
package store

import (
	"context"

	"github.com/sells-group/leadscout/internal/model"
)

// BusinessFilter selects businesses for listing and export. Provided fields
// are combined as a conjunction.
type BusinessFilter struct {
	SearchID   string   `json:"search_id,omitempty"`
	HasWebsite *bool    `json:"has_website,omitempty"`
	MinRating  *float64 `json:"min_rating,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Offset     int      `json:"offset,omitempty"`
}

// Store defines the persistence interface consumed by the orchestrator,
// the usage ledger, and the read-only API surface.
type Store interface {
	// SaveSearch writes one search record plus its businesses in a single
	// transaction. Businesses are upserted by place_id; every business is
	// also associated with the new search. Either everything is visible to
	// subsequent reads or nothing is.
	SaveSearch(ctx context.Context, rec model.SearchRecord, businesses []model.Business) (string, error)

	// ListBusinesses returns a filtered page plus the total match count.
	ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, int, error)

	// GetBusiness fetches a single business by place_id. Returns (nil, nil)
	// when not found.
	GetBusiness(ctx context.Context, placeID string) (*model.Business, error)

	// SummaryStats aggregates the stored business corpus.
	SummaryStats(ctx context.Context) (*model.SummaryStats, error)

	// ListSearchHistory returns past searches, most recent first.
	ListSearchHistory(ctx context.Context, limit int) ([]model.SearchRecord, error)

	// ReserveCalls atomically increments the month's usage counter by n if
	// used+n <= limit, creating the counter row when the month is new.
	// Returns the resulting (or unchanged, when denied) used count and
	// whether the reservation was granted. The check and the increment are
	// one storage-level operation so concurrent searches can never both
	// take the last unit.
	ReserveCalls(ctx context.Context, month string, n, limit int) (used int, ok bool, err error)

	// GetUsage returns the used count for a month (0 when no row exists).
	GetUsage(ctx context.Context, month string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
