package expander

import "fmt"

// Expansion failure kinds. They classify why a walk stopped short of a
// confirmed final destination.
const (
	// KindTimeout marks a per-hop or total deadline expiry.
	KindTimeout = "timeout"

	// KindLoop marks a redirect cycle.
	KindLoop = "loop"

	// KindHops marks an exhausted hop budget with redirects still pending.
	KindHops = "hop_budget"

	// KindNetwork marks a transport-level failure.
	KindNetwork = "network"
)

// ExpansionError explains why expansion ended partially. It accompanies a
// still-usable result and is advisory, never user-facing.
type ExpansionError struct {
	URL   string
	Kind  string
	Cause error
}

// Error returns the error message.
func (e *ExpansionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("expansion of %q stopped (%s): %v", e.URL, e.Kind, e.Cause)
	}
	return fmt.Sprintf("expansion of %q stopped (%s)", e.URL, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *ExpansionError) Unwrap() error {
	return e.Cause
}
