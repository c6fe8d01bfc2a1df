package search

import (
	"fmt"

	"github.com/sells-group/leadscout/internal/ledger"
)

// ValidationError reports bad caller input. Never retried, surfaced verbatim.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// QuotaExceededError means the usage ledger refused the search before any
// provider call was made.
type QuotaExceededError struct {
	Decision ledger.Decision
}

func (e *QuotaExceededError) Error() string {
	return e.Decision.Reason
}

// PersistenceError means results could not be stored. Charged reports whether
// a quota unit was already consumed for the attempt, so the caller knows the
// call counted even though nothing was saved.
type PersistenceError struct {
	Charged bool
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Charged {
		return fmt.Sprintf("failed to persist results (the provider call was still charged against quota): %v", e.Err)
	}
	return fmt.Sprintf("failed to persist results: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
