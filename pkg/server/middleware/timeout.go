package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds one request end to end. Handlers see the deadline on
// their context; if they overrun it, the client gets a 504 and whatever
// the late handler writes afterwards is discarded.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			gw := &guardedWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					gw.timeOut()
				}
				<-done
			}
		})
	}
}

// guardedWriter serializes writes between the handler goroutine and the
// timeout path, and drops handler output once the 504 went out.
type guardedWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	timedOut bool
}

func (gw *guardedWriter) WriteHeader(code int) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.timedOut {
		return
	}
	gw.ResponseWriter.WriteHeader(code)
}

func (gw *guardedWriter) Write(b []byte) (int, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.timedOut {
		return len(b), nil
	}
	return gw.ResponseWriter.Write(b)
}

func (gw *guardedWriter) timeOut() {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.timedOut = true
	WriteError(gw.ResponseWriter, http.StatusGatewayTimeout,
		"timeout", "The request took too long to complete.")
}
