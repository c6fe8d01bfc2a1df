package places

import "fmt"

// ErrorKind classifies provider failures for the caller.
type ErrorKind string

// Provider failure kinds. Only network and rate-limited failures are
// retried; authorization and malformed-response failures never are.
const (
	ErrNetwork           ErrorKind = "network"
	ErrAuthorization     ErrorKind = "authorization"
	ErrRateLimited       ErrorKind = "rate_limited"
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// ProviderError is a classified failure from the places provider.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("places: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ErrNetwork || e.Kind == ErrRateLimited
}
