// Package ledger gatekeeps external API calls against a monthly quota.
//
// Every provider call must pass through CheckAndReserve before it is made.
// Reservation is consumption: once a call is permitted the unit is spent,
// whether or not the provider call later succeeds. That guarantees the
// provider is never called beyond the limit, at the cost of occasionally
// burning a unit on a failed call.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/model"
)

// CounterStore is the storage-level atomic counter the ledger rides on.
type CounterStore interface {
	ReserveCalls(ctx context.Context, month string, n, limit int) (used int, ok bool, err error)
	GetUsage(ctx context.Context, month string) (int, error)
}

// Decision is the outcome of a reservation attempt. A denial is a normal
// outcome, not an error.
type Decision struct {
	Allowed        bool
	Reason         string
	CallsRemaining int
}

// Option configures the ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock. Tests use this to force rollover.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger tracks API calls consumed in the current calendar month.
type Ledger struct {
	store CounterStore
	limit int
	now   func() time.Time
}

// New creates a Ledger with the given monthly call limit.
func New(store CounterStore, limit int, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		limit: limit,
		now:   time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Period returns the current quota period, e.g. "2024-01". Counters are keyed
// by period, so a new month starts at zero without touching old rows.
func (l *Ledger) Period() string {
	return l.now().UTC().Format("2006-01")
}

// CheckAndReserve atomically verifies used+callsNeeded <= limit for the
// current period and, if so, consumes the units in the same operation.
func (l *Ledger) CheckAndReserve(ctx context.Context, callsNeeded int) (Decision, error) {
	if callsNeeded <= 0 {
		return Decision{}, eris.Errorf("ledger: callsNeeded must be positive, got %d", callsNeeded)
	}

	used, ok, err := l.store.ReserveCalls(ctx, l.Period(), callsNeeded, l.limit)
	if err != nil {
		return Decision{}, eris.Wrap(err, "ledger: reserve")
	}

	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	if !ok {
		return Decision{
			Allowed:        false,
			Reason:         fmt.Sprintf("monthly API limit reached (%d/%d); limit resets next month", used, l.limit),
			CallsRemaining: remaining,
		}, nil
	}
	return Decision{Allowed: true, CallsRemaining: remaining}, nil
}

// Usage returns a read-only snapshot of the current period's consumption.
func (l *Ledger) Usage(ctx context.Context) (model.UsageSnapshot, error) {
	month := l.Period()
	used, err := l.store.GetUsage(ctx, month)
	if err != nil {
		return model.UsageSnapshot{}, eris.Wrap(err, "ledger: get usage")
	}

	pct := 0
	if l.limit > 0 {
		pct = int(math.Round(100 * float64(used) / float64(l.limit)))
	}
	if pct > 100 {
		pct = 100
	}
	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}

	return model.UsageSnapshot{
		Month:          month,
		CallsUsed:      used,
		CallsLimit:     l.limit,
		CallsRemaining: remaining,
		PercentageUsed: pct,
	}, nil
}
