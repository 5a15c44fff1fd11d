// Package middleware provides the HTTP middleware chain for the hermes
// API server: panic recovery, request logging, request IDs, CORS, and
// per-request timeouts. The chain is assembled outermost-first in
// pkg/server: recovery, logging, request ID, CORS, timeout.
package middleware
