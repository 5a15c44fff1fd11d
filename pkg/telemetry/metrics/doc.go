// Package metrics exposes Prometheus instrumentation for the cleaning
// service: sanitize outcomes and durations, removals by rule source, rule
// refresh results and the active snapshot version, shortener expansion
// walks, and inference-fallback round trips.
//
// All metrics live in a private registry owned by the Collector; Handler
// serves them in Prometheus exposition format.
package metrics
