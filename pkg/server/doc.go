// Package server provides the hermes HTTP API: link cleaning, cleaning
// history and per-day stats, owner settings and custom rules, plus the
// health, readiness, and metrics endpoints. Requests pass through a
// middleware chain of recovery, logging, request IDs, CORS, and a
// per-request timeout.
package server
