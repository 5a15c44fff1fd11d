// Package store holds the active RuleSet and keeps it fresh.
//
// The store owns the single mutable cell in the sanitization hot path: an
// atomic pointer to the latest committed rules.RuleSet. Sanitize calls grab
// a snapshot with Current and use it for their whole duration; a refresh
// builds a complete new RuleSet and swaps the pointer, so no caller ever
// observes a mixture of old and new rules and the read path takes no locks.
//
// Refreshing is all-or-nothing: a candidate document that fails to compile
// is rejected wholesale and the previous snapshot stays active. The refresh
// cycle runs on a cron schedule (daily by default); file-backed sources are
// additionally watched with fsnotify so local edits apply without waiting
// for the next cycle.
//
// At startup the store retries the initial fetch with exponential backoff
// and, when retries are exhausted, falls back to the bundled default rule
// set so the engine is never left without rules.
package store
