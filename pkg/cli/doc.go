// Package cli provides shared helpers for the hermes command line:
// output formatting, signal-aware contexts, and command error wrapping.
package cli
