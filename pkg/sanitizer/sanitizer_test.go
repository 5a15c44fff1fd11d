package sanitizer

import (
	"testing"
	"time"

	"clearlink-hq/hermes/pkg/rules"
)

const testRules = `{
	"providers": {
		"globalRules": {
			"urlPattern": ".*",
			"rules": ["utm_[a-z_]+", "fbclid", "gclid"],
			"referralMarketing": ["mkt_ref"]
		},
		"example": {
			"urlPattern": "^https?://(?:[a-z0-9-]+\\.)?example\\.com",
			"rules": ["ref", "spm"],
			"referralMarketing": ["tag"],
			"exceptions": ["^https?://safe\\.example\\.com"]
		},
		"out": {
			"urlPattern": "^https?://out\\.example\\.net",
			"redirections": ["^https?://out\\.example\\.net/\\?to=(.*)"]
		},
		"shopa": {
			"urlPattern": "^https?://shopa\\.example\\.org",
			"rawRules": ["\\?ICID=[^&]*"]
		},
		"shopb": {
			"urlPattern": "^https?://shopb\\.example\\.org",
			"rawRules": ["/ref=[^/?]*"]
		}
	}
}`

type staticSnap struct {
	rs *rules.RuleSet
}

func (s staticSnap) Current() *rules.RuleSet { return s.rs }

func newTestSanitizer(t *testing.T) *Sanitizer {
	t.Helper()
	rs, err := rules.Compile([]byte(testRules))
	if err != nil {
		t.Fatalf("compiling test rules: %v", err)
	}
	rs.Version = 7
	return New(staticSnap{rs}, nil)
}

func mustRule(t *testing.T, pattern string) CustomRule {
	t.Helper()
	rule, err := NewCustomRule("tester", pattern, time.Now())
	if err != nil {
		t.Fatalf("NewCustomRule(%q): %v", pattern, err)
	}
	return rule
}

func TestSanitize_ProviderAndGlobalStages(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("https://example.com/search?q=shoes&utm_source=news&ref=x&page=2", nil, Policy{})

	if res.CleanedURL != "https://example.com/search?q=shoes&page=2" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if res.Provider != "example" {
		t.Errorf("Provider = %q, want example", res.Provider)
	}
	if res.RuleVersion != 7 {
		t.Errorf("RuleVersion = %d, want 7", res.RuleVersion)
	}

	want := []Removal{
		{Key: "ref", Source: SourceProvider},
		{Key: "utm_source", Source: SourceGlobal},
	}
	if len(res.Removals) != len(want) {
		t.Fatalf("Removals = %v", res.Removals)
	}
	for i, w := range want {
		if res.Removals[i] != w {
			t.Errorf("Removals[%d] = %v, want %v", i, res.Removals[i], w)
		}
	}
}

func TestSanitize_CustomRulesApplyOnUnknownHost(t *testing.T) {
	s := newTestSanitizer(t)
	custom := []CustomRule{mustRule(t, "^aff_")}

	res := s.Sanitize("https://unknown-shop.test/product?id=9&aff_id=77&aff_src=mail", custom, Policy{})

	if res.CleanedURL != "https://unknown-shop.test/product?id=9" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if res.Provider != "" {
		t.Errorf("Provider = %q, want empty", res.Provider)
	}
	for _, r := range res.Removals {
		if r.Source != SourceCustom {
			t.Errorf("removal %v should carry custom provenance", r)
		}
	}
	if len(res.Removals) != 2 {
		t.Errorf("expected 2 removals, got %v", res.Removals)
	}
}

func TestSanitize_UnknownKeysRetained(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("https://unknown-shop.test/?id=9&xtrk=abc", nil, Policy{})

	if res.Changed() {
		t.Errorf("uncovered parameters must be retained: %q", res.CleanedURL)
	}
	if len(res.Removals) != 0 {
		t.Errorf("unexpected removals: %v", res.Removals)
	}
}

func TestSanitize_ReferralMarketingGatedByPolicy(t *testing.T) {
	s := newTestSanitizer(t)
	in := "https://example.com/item?id=3&tag=partner-21"

	res := s.Sanitize(in, nil, Policy{})
	if res.Changed() {
		t.Errorf("referral key removed without opt-in: %q", res.CleanedURL)
	}

	res = s.Sanitize(in, nil, Policy{RemoveReferralMarketing: true})
	if res.CleanedURL != "https://example.com/item?id=3" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if len(res.Removals) != 1 || res.Removals[0].Key != "tag" || res.Removals[0].Source != SourceProvider {
		t.Errorf("Removals = %v", res.Removals)
	}
}

func TestSanitize_ExceptionHostSkipsProviderAndGlobal(t *testing.T) {
	s := newTestSanitizer(t)
	in := "https://safe.example.com/cb?state=abc&utm_source=x&ref=y"

	res := s.Sanitize(in, nil, Policy{})
	if res.Changed() {
		t.Errorf("exception-listed URL was modified: %q", res.CleanedURL)
	}

	// The owner's own rules still win on exception-listed hosts.
	res = s.Sanitize(in, []CustomRule{mustRule(t, "^ref$")}, Policy{})
	if res.CleanedURL != "https://safe.example.com/cb?state=abc&utm_source=x" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if len(res.Removals) != 1 || res.Removals[0].Source != SourceCustom {
		t.Errorf("Removals = %v", res.Removals)
	}
}

func TestSanitize_DomainExceptionPolicy(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize(
		"https://shop.example.com/p?utm_source=x&ref=y",
		nil,
		Policy{DomainExceptions: []string{"Example.com"}},
	)
	if res.Changed() {
		t.Errorf("policy-excepted subdomain was modified: %q", res.CleanedURL)
	}
}

func TestSanitize_RedirectUnwrap(t *testing.T) {
	s := newTestSanitizer(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"percent-encoded target",
			"https://out.example.net/?to=https%3A%2F%2Fexample.com%2Fitem%3Futm_source%3Dnews%26id%3D4",
			"https://example.com/item?id=4",
		},
		{
			"nested redirector chain",
			"https://out.example.net/?to=https://out.example.net/?to=https://example.com/?utm_source=x",
			"https://example.com/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Sanitize(tt.in, nil, Policy{})
			if !res.Unwrapped {
				t.Error("Unwrapped not set")
			}
			if res.CleanedURL != tt.want {
				t.Errorf("CleanedURL = %q, want %q", res.CleanedURL, tt.want)
			}
		})
	}
}

func TestSanitize_RedirectTargetNotAURL(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("https://out.example.net/?to=dashboard", nil, Policy{})
	if res.Unwrapped {
		t.Error("non-URL redirect target must not unwrap")
	}
	if res.Changed() {
		t.Errorf("URL modified: %q", res.CleanedURL)
	}
}

func TestSanitize_RawRules(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("https://shopa.example.org/item?ICID=promo123", nil, Policy{})
	if res.CleanedURL != "https://shopa.example.org/item" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if len(res.Removals) != 1 || res.Removals[0].Key != "ICID" || res.Removals[0].Source != SourceProvider {
		t.Errorf("Removals = %v", res.Removals)
	}

	// A raw rule that would rewrite the path is refused outright.
	res = s.Sanitize("https://shopb.example.org/item/ref=sr_1_2?id=5", nil, Policy{})
	if res.Changed() {
		t.Errorf("path-rewriting raw rule applied: %q", res.CleanedURL)
	}
}

func TestSanitize_FragmentPseudoQuery(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("https://example.com/page#utm_campaign=spring&section=2", nil, Policy{})
	if res.CleanedURL != "https://example.com/page#section=2" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if len(res.Removals) != 1 || res.Removals[0].Key != "utm_campaign" {
		t.Errorf("Removals = %v", res.Removals)
	}

	// Plain anchors are not pseudo-queries.
	res = s.Sanitize("https://example.com/page#overview", nil, Policy{})
	if res.Changed() {
		t.Errorf("plain anchor modified: %q", res.CleanedURL)
	}
}

func TestSanitize_SchemelessInput(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("example.com/search?q=1&utm_source=x", nil, Policy{})
	if res.CleanedURL != "example.com/search?q=1" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}

	res = s.Sanitize("example.com/about", nil, Policy{})
	if res.CleanedURL != "example.com/about" {
		t.Errorf("unchanged scheme-less input altered: %q", res.CleanedURL)
	}
}

func TestSanitize_UnparseableInputPassthrough(t *testing.T) {
	s := newTestSanitizer(t)

	for _, in := range []string{"://missing", "http://[::1"} {
		res := s.Sanitize(in, nil, Policy{})
		if res.CleanedURL != in {
			t.Errorf("Sanitize(%q) = %q, want passthrough", in, res.CleanedURL)
		}
		if res.ErrorKind != ErrorKindParse {
			t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, ErrorKindParse)
		}
		if len(res.Removals) != 0 {
			t.Errorf("removals on unparseable input: %v", res.Removals)
		}
	}
}

func TestSanitize_AggressiveTrackers(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("https://search.other.test/?q=go&ved=2ahUKE&client=firefox-b-d", nil, Policy{})
	if res.CleanedURL != "https://search.other.test/?q=go" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	for _, r := range res.Removals {
		if r.Source != SourceGlobal {
			t.Errorf("removal %v should carry global provenance", r)
		}
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := newTestSanitizer(t)

	inputs := []string{
		"https://example.com/search?q=shoes&utm_source=news&ref=x&page=2",
		"https://out.example.net/?to=https%3A%2F%2Fexample.com%2F%3Futm_source%3Dx",
		"example.com/search?q=1&utm_source=x",
		"https://example.com/page#utm_campaign=a&keep=1",
	}
	for _, in := range inputs {
		first := s.Sanitize(in, nil, Policy{})
		second := s.Sanitize(first.CleanedURL, nil, Policy{})
		if second.CleanedURL != first.CleanedURL {
			t.Errorf("not idempotent: %q -> %q -> %q", in, first.CleanedURL, second.CleanedURL)
		}
		if len(second.Removals) != 0 {
			t.Errorf("second pass on %q removed %v", first.CleanedURL, second.Removals)
		}
	}
}

func TestSanitize_RemovalsMatchQueryDiff(t *testing.T) {
	s := newTestSanitizer(t)

	in := "https://example.com/a?q=1&utm_source=x&ref=y&keep=2&fbclid=abc"
	res := s.Sanitize(in, nil, Policy{})

	before := RemainingKeys(in)
	after := map[string]bool{}
	for _, k := range RemainingKeys(res.CleanedURL) {
		after[k] = true
	}

	var diff []string
	for _, k := range before {
		if !after[k] {
			diff = append(diff, k)
		}
	}

	removed := map[string]bool{}
	for _, k := range res.RemovedKeys() {
		removed[k] = true
	}
	if len(diff) != len(removed) {
		t.Fatalf("diff %v vs removals %v", diff, res.Removals)
	}
	for _, k := range diff {
		if !removed[k] {
			t.Errorf("key %q disappeared without a removal record", k)
		}
	}
}

func TestSanitize_EncodingOfKeptParamsPreserved(t *testing.T) {
	s := newTestSanitizer(t)

	res := s.Sanitize("https://example.com/s?q=a%20b%2Bc&utm_source=x", nil, Policy{})
	if res.CleanedURL != "https://example.com/s?q=a%20b%2Bc" {
		t.Errorf("kept parameter re-encoded: %q", res.CleanedURL)
	}
}

func TestSanitize_LiteralPlusInKeyNotFoldedToSpace(t *testing.T) {
	// "+" in a raw key is a literal plus here; only percent escapes decode.
	keys := RemainingKeys("https://a.test/p?a+b=1&c%20d=2")
	if len(keys) != 2 || keys[0] != "a+b" || keys[1] != "c d" {
		t.Fatalf("keys = %v", keys)
	}

	cleaned, removed := StripKeys("https://a.test/p?a+b=1&id=2", []string{"a+b"})
	if cleaned != "https://a.test/p?id=2" {
		t.Errorf("cleaned = %q", cleaned)
	}
	if len(removed) != 1 || removed[0] != "a+b" {
		t.Errorf("removed = %v", removed)
	}

	cleaned, removed = StripKeys("https://a.test/p?a+b=1", []string{"a b"})
	if cleaned != "https://a.test/p?a+b=1" || removed != nil {
		t.Errorf("space key matched a literal plus: %q %v", cleaned, removed)
	}
}

func TestStripKeys(t *testing.T) {
	cleaned, removed := StripKeys("https://a.test/p?id=1&sess=9&trk=x#trk2=y", []string{"sess", "trk", "trk2"})
	if cleaned != "https://a.test/p?id=1" {
		t.Errorf("cleaned = %q", cleaned)
	}
	if len(removed) != 3 {
		t.Errorf("removed = %v", removed)
	}

	cleaned, removed = StripKeys("https://a.test/p?id=1", []string{"missing"})
	if cleaned != "https://a.test/p?id=1" || removed != nil {
		t.Errorf("no-op StripKeys changed output: %q %v", cleaned, removed)
	}
}

func TestRemainingKeys(t *testing.T) {
	keys := RemainingKeys("https://a.test/p?id=1&x=2&id=3#frag=4")
	want := []string{"id", "x", "frag"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestNewCustomRule_Invalid(t *testing.T) {
	for _, pattern := range []string{"", "[broken"} {
		if _, err := NewCustomRule("tester", pattern, time.Now()); err == nil {
			t.Errorf("NewCustomRule(%q) accepted an invalid pattern", pattern)
		}
	}
}
