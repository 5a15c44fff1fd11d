package sanitizer

import "fmt"

// Error kinds recorded on a CleaningResult. All of them are recoverable:
// the worst case is reduced cleaning coverage, never a failed call.
const (
	// ErrorKindParse marks input that is not a parseable URL. The original
	// text is passed through unchanged with zero removals.
	ErrorKindParse = "url_parse_error"
)

// ParseError indicates the input could not be parsed as a URL.
type ParseError struct {
	Input string
	Cause error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse URL %q: %v", e.Input, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// PatternError indicates a custom rule pattern failed to compile.
type PatternError struct {
	Pattern string
	Cause   error
}

// Error returns the error message.
func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid custom rule pattern %q: %v", e.Pattern, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PatternError) Unwrap() error {
	return e.Cause
}
