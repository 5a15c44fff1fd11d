// Package telemetry groups the observability subpackages.
//
//   - logging: structured slog logging with sensitive-value redaction
//   - metrics: Prometheus metrics collection and exposition
//   - health: liveness and readiness probes
//
// Each subpackage stands alone; there is no combined facade. The server
// wires them together at startup.
package telemetry
