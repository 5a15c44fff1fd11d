// Package sanitizer applies tracking-parameter removal rules to URLs.
//
// Sanitize works over one RuleSet snapshot for its whole duration and is
// pure computation: no locks, no I/O. Rules apply in strict order — the
// caller's custom rules, then the resolved provider's rules, then the global
// rules — and every removal is recorded with its provenance so the audit
// trail can explain exactly why a parameter disappeared.
//
// Redirector links whose true destination is embedded as a parameter are
// unwrapped in place, bounded to a fixed depth to survive redirect cycles.
// Exception-listed hosts short-circuit provider and global rules but still
// honor the caller's custom rules. Unparseable input is passed through
// untouched; absence of rule coverage is never an error.
package sanitizer
