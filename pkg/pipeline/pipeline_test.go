package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clearlink-hq/hermes/pkg/audit"
	"clearlink-hq/hermes/pkg/audit/storage"
	"clearlink-hq/hermes/pkg/expander"
	"clearlink-hq/hermes/pkg/fallback"
	"clearlink-hq/hermes/pkg/rules"
	"clearlink-hq/hermes/pkg/sanitizer"
	"clearlink-hq/hermes/pkg/settings"
)

const testRules = `{
	"providers": {
		"globalRules": {"urlPattern": ".*", "rules": ["utm_[a-z_]+", "fbclid"]},
		"example": {"urlPattern": "^https?://(?:[a-z0-9-]+\\.)?example\\.com", "rules": ["ref"]}
	}
}`

type staticSnap struct {
	rs *rules.RuleSet
}

func (s staticSnap) Current() *rules.RuleSet { return s.rs }

func newTestSanitizer(t *testing.T) *sanitizer.Sanitizer {
	t.Helper()
	rs, err := rules.Compile([]byte(testRules))
	if err != nil {
		t.Fatalf("compiling test rules: %v", err)
	}
	rs.Version = 3
	return sanitizer.New(staticSnap{rs}, nil)
}

func TestClean_EndToEndWithAudit(t *testing.T) {
	store := storage.NewMemoryStorage()
	recorder := audit.NewRecorder(store, nil, nil)
	svc := settings.NewService(settings.NewMemoryBackend(), nil)
	if _, err := svc.AddCustomRule(context.Background(), "alice", "^aff_"); err != nil {
		t.Fatalf("AddCustomRule() error: %v", err)
	}

	p, err := New(Deps{
		Sanitizer: newTestSanitizer(t),
		Settings:  svc,
		Recorder:  recorder,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	res, err := p.Clean(context.Background(), &Request{
		URL:   "https://example.com/p?id=1&utm_source=x&aff_id=9",
		Owner: "alice",
	})
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	if res.CleanedURL != "https://example.com/p?id=1" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if len(res.Removals) != 2 {
		t.Errorf("Removals = %v", res.Removals)
	}
	if res.Removals[0].Source != sanitizer.SourceCustom || res.Removals[1].Source != sanitizer.SourceGlobal {
		t.Errorf("removal provenance wrong: %v", res.Removals)
	}

	// Drain the async writer, then check the trail.
	recorder.Close()
	records, err := store.Query(context.Background(), &audit.Query{Owner: "alice"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("stored %d records, want 1", len(records))
	}
	rec := records[0]
	if !rec.Changed || rec.RuleVersion != 3 || len(rec.Removals) != 2 {
		t.Errorf("audit record = %+v", rec)
	}
}

func TestClean_DisabledOwnerPassesThrough(t *testing.T) {
	svc := settings.NewService(settings.NewMemoryBackend(), nil)
	err := svc.UpdatePreferences(context.Background(), &settings.Preferences{Owner: "bob", Enabled: false})
	if err != nil {
		t.Fatalf("UpdatePreferences() error: %v", err)
	}

	store := storage.NewMemoryStorage()
	recorder := audit.NewRecorder(store, nil, nil)
	p, _ := New(Deps{Sanitizer: newTestSanitizer(t), Settings: svc, Recorder: recorder})

	in := "https://example.com/p?utm_source=x"
	res, err := p.Clean(context.Background(), &Request{URL: in, Owner: "bob"})
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	if res.CleanedURL != in || len(res.Removals) != 0 {
		t.Errorf("disabled owner's URL was cleaned: %+v", res)
	}

	recorder.Close()
	if n, _ := store.Count(context.Background(), &audit.Query{}); n != 0 {
		t.Errorf("disabled owner produced %d audit records", n)
	}
}

func TestClean_FallbackStripsFlaggedKeys(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Host           string   `json:"host"`
			UnresolvedKeys []string `json:"unresolvedKeys"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Host != "unknown-shop.test" {
			t.Errorf("fallback saw host %q", req.Host)
		}
		json.NewEncoder(w).Encode(map[string][]string{"trackingKeys": {"xtrk"}})
	}))
	defer ts.Close()

	p, _ := New(Deps{
		Sanitizer: newTestSanitizer(t),
		Fallback:  fallback.New(&fallback.Config{Endpoint: ts.URL}, nil, nil),
	})

	allow := true
	res, err := p.Clean(context.Background(), &Request{
		URL:             "https://unknown-shop.test/p?id=1&xtrk=abc",
		Owner:           "alice",
		AllowAIFallback: &allow,
	})
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	if res.CleanedURL != "https://unknown-shop.test/p?id=1" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	last := res.Removals[len(res.Removals)-1]
	if last.Key != "xtrk" || last.Source != sanitizer.SourceAI {
		t.Errorf("fallback removal = %+v", last)
	}
}

func TestClean_FallbackFailureLeavesURLIntact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	p, _ := New(Deps{
		Sanitizer: newTestSanitizer(t),
		Fallback:  fallback.New(&fallback.Config{Endpoint: ts.URL}, nil, nil),
	})

	allow := true
	res, err := p.Clean(context.Background(), &Request{
		URL:             "https://unknown-shop.test/p?id=1&xtrk=abc",
		Owner:           "alice",
		AllowAIFallback: &allow,
	})
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	if res.Changed() {
		t.Errorf("failed fallback still changed the URL: %q", res.CleanedURL)
	}
}

func TestClean_FallbackNotConsultedWithoutOptIn(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		json.NewEncoder(w).Encode(map[string][]string{"trackingKeys": {"xtrk"}})
	}))
	defer ts.Close()

	p, _ := New(Deps{
		Sanitizer: newTestSanitizer(t),
		Fallback:  fallback.New(&fallback.Config{Endpoint: ts.URL}, nil, nil),
	})

	res, err := p.Clean(context.Background(), &Request{
		URL:   "https://unknown-shop.test/p?id=1&xtrk=abc",
		Owner: "alice",
	})
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	if called {
		t.Error("fallback consulted without the owner's opt-in")
	}
	if res.Changed() {
		t.Errorf("URL changed without any applicable rule: %q", res.CleanedURL)
	}
}

func TestClean_FallbackSkipsExceptedHosts(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		json.NewEncoder(w).Encode(map[string][]string{"trackingKeys": {"xtrk"}})
	}))
	defer ts.Close()

	svc := settings.NewService(settings.NewMemoryBackend(), nil)
	err := svc.UpdatePreferences(context.Background(), &settings.Preferences{
		Owner:            "carol",
		Enabled:          true,
		AllowAIFallback:  true,
		DomainExceptions: []string{"unknown-shop.test"},
	})
	if err != nil {
		t.Fatalf("UpdatePreferences() error: %v", err)
	}

	p, _ := New(Deps{
		Sanitizer: newTestSanitizer(t),
		Settings:  svc,
		Fallback:  fallback.New(&fallback.Config{Endpoint: ts.URL}, nil, nil),
	})

	in := "https://unknown-shop.test/p?id=1&xtrk=abc"
	res, err := p.Clean(context.Background(), &Request{URL: in, Owner: "carol"})
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	if called {
		t.Error("fallback consulted for an excepted host")
	}
	if res.CleanedURL != in {
		t.Errorf("excepted host's URL was cleaned: %q", res.CleanedURL)
	}
}

func TestClean_ExpandsShortenerBeforeCleaning(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.com/page?id=7&utm_source=short", http.StatusFound)
	}))
	defer ts.Close()

	exp := expander.New(&expander.Config{
		Allowlist:     []string{"127.0.0.1"},
		MaxHops:       5,
		PerHopTimeout: 2 * time.Second,
		TotalTimeout:  5 * time.Second,
	}, nil, nil)

	p, _ := New(Deps{Sanitizer: newTestSanitizer(t), Expander: exp})

	res, err := p.Clean(context.Background(), &Request{URL: ts.URL + "/abc", Owner: "alice"})
	if err != nil {
		t.Fatalf("Clean() error: %v", err)
	}
	if res.CleanedURL != "https://example.com/page?id=7" {
		t.Errorf("CleanedURL = %q", res.CleanedURL)
	}
	if res.ExpansionHops != 1 || res.PartialExpansion {
		t.Errorf("hops = %d, partial = %v", res.ExpansionHops, res.PartialExpansion)
	}
	if res.OriginalURL != ts.URL+"/abc" {
		t.Errorf("OriginalURL = %q", res.OriginalURL)
	}
}
