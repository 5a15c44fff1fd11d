// Package health provides liveness and readiness probes for the HTTP
// server. Components register CheckFuncs at startup; the readiness
// endpoint runs them concurrently and reports 503 when any component is
// unhealthy. Liveness stays cheap and never touches components.
package health
