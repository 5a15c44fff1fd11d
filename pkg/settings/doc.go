// Package settings stores per-owner sanitize preferences and custom
// parameter-removal rules.
//
// The cleaning engine itself persists nothing; this package is the boundary
// collaborator that does. A Backend holds the raw data (in memory or in
// SQLite), and the Service on top validates rule patterns before they are
// stored and hands the sanitizer ready-compiled rules and a policy per
// owner. Unknown owners get defaults: cleaning on, referral-marketing
// removal off, inference fallback off, no domain exceptions.
package settings
