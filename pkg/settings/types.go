package settings

import (
	"context"
	"time"
)

// Preferences are one owner's sanitize settings.
type Preferences struct {
	// Owner identifies whose settings these are.
	Owner string `json:"owner"`

	// Enabled turns cleaning on or off for this owner.
	Enabled bool `json:"enabled"`

	// RemoveReferralMarketing opts into the providers' referral/affiliate
	// rule subsets.
	RemoveReferralMarketing bool `json:"remove_referral_marketing"`

	// AllowAIFallback permits escalating unclassified keys to the
	// inference fallback.
	AllowAIFallback bool `json:"allow_ai_fallback"`

	// DomainExceptions lists hosts this owner wants left alone.
	DomainExceptions []string `json:"domain_exceptions,omitempty"`

	// UpdatedAt is when the owner last changed anything here.
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences are the settings an owner has before touching any.
func DefaultPreferences(owner string) *Preferences {
	return &Preferences{
		Owner:   owner,
		Enabled: true,
	}
}

// StoredRule is one custom rule as persisted: the owner's pattern text plus
// when it was added. Compilation happens in the Service.
type StoredRule struct {
	Owner     string    `json:"owner"`
	Pattern   string    `json:"pattern"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend persists preferences and custom rules. Implementations must be
// safe for concurrent use.
type Backend interface {
	// SavePreferences inserts or updates an owner's preferences.
	SavePreferences(ctx context.Context, prefs *Preferences) error

	// LoadPreferences returns an owner's preferences, nil when the owner
	// has never saved any.
	LoadPreferences(ctx context.Context, owner string) (*Preferences, error)

	// AddRule stores a custom rule. Returns ErrDuplicateRule when the
	// owner already has the pattern.
	AddRule(ctx context.Context, rule StoredRule) error

	// DeleteRule removes a custom rule. Returns ErrRuleNotFound when the
	// owner does not have the pattern.
	DeleteRule(ctx context.Context, owner, pattern string) error

	// ListRules returns an owner's rules ordered by creation time.
	ListRules(ctx context.Context, owner string) ([]StoredRule, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
