package rules

import (
	"regexp"
	"strings"
	"time"
)

// RuleSet is an immutable, versioned collection of compiled provider rules.
// Every pattern inside a RuleSet is guaranteed to have compiled successfully;
// a RuleSet is never observable in a partially compiled state.
type RuleSet struct {
	// Version is a monotonic identifier assigned by the store at commit time.
	Version int64

	// CompiledAt is when this rule set was compiled.
	CompiledAt time.Time

	// Providers are the host-scoped rule groups, ordered most specific
	// first (ties broken by ascending provider name) so that provider
	// resolution is deterministic regardless of document map order.
	Providers []*Provider

	// Global is the catch-all rule group applied regardless of the matched
	// provider (the "globalRules" entry of a ClearURLs document). Nil when
	// the document carries none.
	Global *Provider
}

// Provider is a named, compiled group of parameter-removal rules scoped to a
// host/domain family by URLPattern.
type Provider struct {
	// Name is the provider key from the rule document.
	Name string

	// URLPattern matches URLs this provider's rules apply to.
	URLPattern *regexp.Regexp

	// Rules are the parameter-removal rules matched against query and
	// fragment keys.
	Rules []*ParamRule

	// ReferralMarketing is the separately gated referral/affiliate subset.
	// It is only applied when the caller's policy opts in.
	ReferralMarketing []*ParamRule

	// RawRules are removal patterns applied to the whole URL string.
	RawRules []*regexp.Regexp

	// Redirections identify redirector URLs; the first capture group is the
	// embedded destination URL.
	Redirections []*regexp.Regexp

	// Exceptions are URLs this provider must leave alone. A matching
	// exception also bypasses the global stage.
	Exceptions []*regexp.Regexp

	// ForceRedirection marks providers whose redirections must be followed
	// even when the destination is not an allowlisted shortener.
	ForceRedirection bool

	// specificity orders providers for resolution. Higher wins.
	specificity int
}

// MatchesURL reports whether url falls under this provider.
func (p *Provider) MatchesURL(url string) bool {
	return p.URLPattern.MatchString(url)
}

// IsException reports whether url matches one of the provider's
// exception patterns.
func (p *Provider) IsException(url string) bool {
	for _, re := range p.Exceptions {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// Specificity returns the provider's resolution rank. It is derived from the
// literal (non-meta) content of the URL pattern, so a pattern naming a
// concrete domain outranks a generic catch-all.
func (p *Provider) Specificity() int {
	return p.specificity
}

// ParamRule is a single parameter-removal rule. Rules written as plain
// parameter names match exactly; anything containing regular-expression
// metacharacters is compiled anchored to the whole key.
type ParamRule struct {
	// Pattern is the rule as written in the document.
	Pattern string

	// CaseInsensitive relaxes key comparison. Keys are compared
	// case-sensitively unless the rule opts out with a (?i) prefix.
	CaseInsensitive bool

	exact string         // literal key, empty when re is set
	re    *regexp.Regexp // compiled pattern, nil for literal rules
}

// Matches reports whether the query/fragment key is removed by this rule.
func (r *ParamRule) Matches(key string) bool {
	if r.re != nil {
		return r.re.MatchString(key)
	}
	if r.CaseInsensitive {
		return strings.EqualFold(r.exact, key)
	}
	return r.exact == key
}

// Resolve returns the most specific provider matching url, or nil when only
// the global stage applies. Providers are pre-sorted by descending
// specificity with ties broken by ascending name, so the first match wins
// deterministically.
func (rs *RuleSet) Resolve(url string) *Provider {
	for _, p := range rs.Providers {
		if p.MatchesURL(url) {
			return p
		}
	}
	return nil
}

// ProviderCount returns the number of host-scoped providers, excluding the
// global group.
func (rs *RuleSet) ProviderCount() int {
	return len(rs.Providers)
}

// patternSpecificity estimates how specific a URL pattern is by counting the
// characters that can only match literally (letters, digits, dots, hyphens).
// "^https?://(?:[a-z0-9-]+\.)*?amazon\..*" outranks ".*".
func patternSpecificity(src string) int {
	n := 0
	inClass := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\':
			i++ // skip escaped char, it still matches literally
			n++
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case inClass:
			// character classes match a set, not a literal
		case c == '.' || c == '*' || c == '+' || c == '?' || c == '(' ||
			c == ')' || c == '|' || c == '^' || c == '$' || c == '{' || c == '}':
			// regex operators contribute nothing
		default:
			n++
		}
	}
	return n
}
