package audit

import (
	"context"
	"time"
)

// Removal is one stripped parameter with its provenance, as recorded.
type Removal struct {
	Key    string `json:"key"`
	Source string `json:"source"`
}

// CleaningRecord is the audit trail for a single sanitize call.
type CleaningRecord struct {
	// ID is a UUID v4 assigned by the recorder.
	ID string `json:"id"`

	// Owner identifies who asked for the cleaning.
	Owner string `json:"owner"`

	// OriginalURL is the input as submitted.
	OriginalURL string `json:"original_url"`

	// CleanedURL is the output.
	CleanedURL string `json:"cleaned_url"`

	// Removals lists the stripped parameters in removal order.
	Removals []Removal `json:"removals,omitempty"`

	// Provider is the matched provider rule group, empty for global-only
	// cleaning.
	Provider string `json:"provider,omitempty"`

	// RuleVersion is the rule snapshot version the call used.
	RuleVersion int64 `json:"rule_version,omitempty"`

	// Changed reports whether the URL was altered at all.
	Changed bool `json:"changed"`

	// Unwrapped reports a redirector link replaced by its destination.
	Unwrapped bool `json:"unwrapped,omitempty"`

	// ExpansionHops counts shortener redirects followed.
	ExpansionHops int `json:"expansion_hops,omitempty"`

	// PartialExpansion reports an expansion walk that ended early.
	PartialExpansion bool `json:"partial_expansion,omitempty"`

	// ErrorKind classifies a recoverable condition ("url_parse_error").
	ErrorKind string `json:"error_kind,omitempty"`

	// Duration is how long the whole cleaning took.
	Duration time.Duration `json:"duration"`

	// CreatedAt is when the record was enqueued.
	CreatedAt time.Time `json:"created_at"`
}

// Query filters cleaning history reads.
type Query struct {
	// Owner restricts results to one owner. Empty matches all.
	Owner string `json:"owner,omitempty"`

	// Since and Until bound CreatedAt, both inclusive.
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`

	// OnlyChanged keeps records where the URL was actually altered.
	OnlyChanged bool `json:"only_changed,omitempty"`

	// Limit and Offset paginate. Limit 0 means the backend default.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// DayStat aggregates one calendar day of cleaning activity.
type DayStat struct {
	// Day is the calendar date in YYYY-MM-DD (UTC).
	Day string `json:"day"`

	// Total counts records.
	Total int64 `json:"total"`

	// Changed counts records where the URL was altered.
	Changed int64 `json:"changed"`

	// Removed sums stripped parameters.
	Removed int64 `json:"removed"`
}

// Storage persists cleaning records. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, record *CleaningRecord) error

	// Query returns records matching q, newest first.
	Query(ctx context.Context, q *Query) ([]*CleaningRecord, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// StatsByDay aggregates per-day activity for the last days calendar
	// days, newest first. An empty owner aggregates everyone.
	StatsByDay(ctx context.Context, owner string, days int) ([]DayStat, error)

	// DeleteOlderThan removes records created before cutoff and returns
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
