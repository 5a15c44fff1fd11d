package middleware

import (
	"context"
	"time"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	startTimeKey contextKey = "start_time"
)

// RequestIDFrom returns the request ID stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// StartTimeFrom returns the request start time stored by Logging, or the
// zero time.
func StartTimeFrom(ctx context.Context) time.Time {
	start, _ := ctx.Value(startTimeKey).(time.Time)
	return start
}
