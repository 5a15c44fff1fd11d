package rules

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrEmptyDocument indicates the raw rule document was empty.
	ErrEmptyDocument = errors.New("rule document is empty")

	// ErrNoProviders indicates the document parsed but contained no providers.
	ErrNoProviders = errors.New("rule document contains no providers")
)

// CompileError indicates a candidate rule document failed validation or
// compilation. The whole document is rejected; Problems lists every issue
// found so operators can fix the document in one pass.
type CompileError struct {
	Problems []string
}

// Error returns the error message.
func (e *CompileError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("rule compile error: %s", e.Problems[0])
	}
	return fmt.Sprintf("rule compile error: %d problems: %v", len(e.Problems), e.Problems)
}

// FetchError indicates a rule document could not be retrieved from its source.
type FetchError struct {
	Source string
	Cause  error
}

// Error returns the error message.
func (e *FetchError) Error() string {
	return fmt.Sprintf("rule fetch from %q failed: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Cause
}
