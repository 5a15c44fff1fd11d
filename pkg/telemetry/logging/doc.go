// Package logging builds the process-wide slog logger. The handler it
// installs attaches request-scoped context fields (request ID, owner) to
// every record and, when enabled, redacts sensitive values such as API
// keys, emails, IPv4 addresses, and passwords before they reach the
// output sink.
package logging
