package settings

import (
	"errors"
	"fmt"
)

// ErrDuplicateRule is returned when an owner adds a pattern they already
// have.
var ErrDuplicateRule = errors.New("custom rule already exists")

// ErrRuleNotFound is returned when deleting a pattern the owner does not
// have.
var ErrRuleNotFound = errors.New("custom rule not found")

// StorageError wraps a backend failure.
type StorageError struct {
	Op    string
	Cause error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("settings storage %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
