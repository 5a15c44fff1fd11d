package sanitizer

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Source is the rule category responsible for a parameter's removal.
type Source string

const (
	// SourceCustom marks removals by the requesting owner's own rules.
	SourceCustom Source = "custom"

	// SourceProvider marks removals by the matched provider's rules.
	SourceProvider Source = "provider"

	// SourceGlobal marks removals by provider-independent global rules.
	SourceGlobal Source = "global"

	// SourceAI marks removals decided by the inference fallback.
	SourceAI Source = "ai"
)

// Removal records one stripped parameter and its provenance.
type Removal struct {
	Key    string `json:"key"`
	Source Source `json:"source"`
}

// CleaningResult is the outcome of a single sanitize invocation. Ownership
// passes to the caller; the sanitizer keeps no reference to it.
type CleaningResult struct {
	// OriginalURL is the input exactly as submitted.
	OriginalURL string `json:"original_url"`

	// CleanedURL is the sanitized URL. Equal to OriginalURL when nothing
	// was removed (including the unparseable-input passthrough).
	CleanedURL string `json:"cleaned_url"`

	// Removals lists every stripped parameter in removal order with its
	// provenance. The set of keys here is exactly the set of query keys
	// present in the original but absent in the cleaned URL.
	Removals []Removal `json:"removals"`

	// Provider is the name of the matched provider rule group, empty when
	// only global rules applied.
	Provider string `json:"provider,omitempty"`

	// RuleVersion is the RuleSet snapshot version the call observed.
	RuleVersion int64 `json:"rule_version,omitempty"`

	// Unwrapped reports that a redirector link was replaced by its embedded
	// destination, so host and path may legitimately differ from the input.
	Unwrapped bool `json:"unwrapped,omitempty"`

	// ExpansionHops counts shortener redirects followed before
	// sanitization. Zero when no expansion ran.
	ExpansionHops int `json:"expansion_hops,omitempty"`

	// PartialExpansion is set when expansion terminated without confirming
	// a final destination (timeout, hop budget, loop, network failure).
	PartialExpansion bool `json:"partial_expansion,omitempty"`

	// ErrorKind classifies recoverable conditions (e.g. ErrorKindParse).
	// Empty on the happy path.
	ErrorKind string `json:"error_kind,omitempty"`
}

// Changed reports whether sanitization altered the URL.
func (r *CleaningResult) Changed() bool {
	return r.CleanedURL != r.OriginalURL
}

// RemovedKeys returns the removed parameter keys in removal order.
func (r *CleaningResult) RemovedKeys() []string {
	keys := make([]string, len(r.Removals))
	for i, rm := range r.Removals {
		keys[i] = rm.Key
	}
	return keys
}

// Policy is the per-call cleaning policy supplied by the settings
// collaborator.
type Policy struct {
	// RemoveReferralMarketing gates the providers' referral/affiliate rule
	// subsets.
	RemoveReferralMarketing bool `json:"remove_referral_marketing"`

	// AllowAIFallback permits escalating still-unclassified parameter keys
	// to the inference fallback.
	AllowAIFallback bool `json:"allow_ai_fallback"`

	// DomainExceptions lists hosts the owner wants left alone. A host is
	// excepted when it equals an entry or is a subdomain of one;
	// comparison is case-insensitive.
	DomainExceptions []string `json:"domain_exceptions,omitempty"`
}

// ExemptsHost reports whether host falls under the policy's domain
// exceptions.
func (p Policy) ExemptsHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range p.DomainExceptions {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// CustomRule is an owner-scoped parameter-removal pattern. Rules are owned
// and mutated exclusively by the settings collaborator; the engine only
// reads the compiled set at sanitize time.
type CustomRule struct {
	// Owner identifies the user the rule belongs to.
	Owner string `json:"owner"`

	// Pattern is the rule as written by the owner. It is matched as an
	// unanchored regular expression against query and fragment keys.
	Pattern string `json:"pattern"`

	// CreatedAt is when the owner added the rule.
	CreatedAt time.Time `json:"created_at"`

	re *regexp.Regexp
}

// NewCustomRule compiles an owner's pattern. Invalid patterns are rejected
// with a *PatternError at creation time so sanitize never sees one.
func NewCustomRule(owner, pattern string, createdAt time.Time) (CustomRule, error) {
	if pattern == "" {
		return CustomRule{}, &PatternError{Pattern: pattern, Cause: errEmptyPattern}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return CustomRule{}, &PatternError{Pattern: pattern, Cause: err}
	}
	return CustomRule{Owner: owner, Pattern: pattern, CreatedAt: createdAt, re: re}, nil
}

// Matches reports whether the rule removes the given parameter key.
func (r CustomRule) Matches(key string) bool {
	return r.re != nil && r.re.MatchString(key)
}

var errEmptyPattern = errors.New("empty pattern")
