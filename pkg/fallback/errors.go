package fallback

import (
	"errors"
	"fmt"
)

// ErrDisabled is returned by Classify when no endpoint is configured.
var ErrDisabled = errors.New("inference fallback disabled")

// FallbackError explains a failed classification round trip. Callers treat
// it as advisory; the sanitize call it belongs to still succeeds.
type FallbackError struct {
	Endpoint string
	Status   int
	Cause    error
}

// Error returns the error message.
func (e *FallbackError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fallback endpoint %s answered status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("fallback endpoint %s unreachable: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *FallbackError) Unwrap() error {
	return e.Cause
}
