// Package retention enforces the cleaning-history retention policy by
// deleting records older than the configured window, either on demand or
// on a cron schedule.
package retention
