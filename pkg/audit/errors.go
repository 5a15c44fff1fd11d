package audit

import "fmt"

// StorageError wraps a storage backend failure.
type StorageError struct {
	Op    string
	Cause error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// RecorderError indicates a record could not be enqueued for writing.
type RecorderError struct {
	RecordID string
	Cause    error
}

// Error returns the error message.
func (e *RecorderError) Error() string {
	return fmt.Sprintf("failed to enqueue audit record %s: %v", e.RecordID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RecorderError) Unwrap() error {
	return e.Cause
}
