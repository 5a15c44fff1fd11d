// Package pipeline wires the cleaning stages into one call: resolve the
// owner's settings, expand allowlisted shortener links, sanitize, escalate
// leftover keys to the inference fallback when the owner permits it, then
// hand the outcome to the audit recorder and the metrics collector.
//
// Every stage is best-effort. Expansion and fallback failures degrade to
// less cleaning, never to a failed call, and the caller's deadline bounds
// the network-touching stages.
package pipeline
