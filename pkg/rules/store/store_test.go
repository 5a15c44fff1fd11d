package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clearlink-hq/hermes/pkg/rules"
)

const testDoc = `{
	"providers": {
		"globalRules": {"urlPattern": ".*", "rules": ["utm_[a-z_]+"]},
		"example": {"urlPattern": "^https?://example\\.com", "rules": ["ref"]}
	}
}`

const testDocV2 = `{
	"providers": {
		"globalRules": {"urlPattern": ".*", "rules": ["utm_[a-z_]+", "fbclid"]},
		"example": {"urlPattern": "^https?://example\\.com", "rules": ["ref", "spm"]}
	}
}`

func quietConfig() *Config {
	return &Config{
		RefreshSchedule: "", // no cron in tests
		FetchTimeout:    5 * time.Second,
		InitialRetries:  1,
		InitialBackoff:  time.Millisecond,
	}
}

func TestStore_InitialLoad(t *testing.T) {
	src := &StaticSource{Name: "test", Doc: []byte(testDoc)}
	s, err := New(src, quietConfig(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	rs := s.Current()
	if rs == nil {
		t.Fatal("Current() returned nil after Start")
	}
	if rs.Version != 1 {
		t.Errorf("expected version 1, got %d", rs.Version)
	}
	if rs.ProviderCount() != 1 || rs.Global == nil {
		t.Errorf("unexpected rule set shape: %d providers, global=%v", rs.ProviderCount(), rs.Global != nil)
	}
}

func TestStore_RefreshReplacesSnapshot(t *testing.T) {
	src := &StaticSource{Name: "test", Doc: []byte(testDoc)}
	s, _ := New(src, quietConfig(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	old := s.Current()

	src.Doc = []byte(testDocV2)
	version, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	// The snapshot grabbed before the refresh is untouched.
	if len(old.Global.Rules) != 1 {
		t.Errorf("pre-refresh snapshot mutated: %d global rules", len(old.Global.Rules))
	}
	if got := s.Current(); len(got.Global.Rules) != 2 {
		t.Errorf("post-refresh snapshot has %d global rules, want 2", len(got.Global.Rules))
	}
}

func TestStore_RejectedCandidateKeepsSnapshot(t *testing.T) {
	src := &StaticSource{Name: "test", Doc: []byte(testDoc)}
	s, _ := New(src, quietConfig(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	src.Doc = []byte(`{"providers": {"bad": {"urlPattern": "x", "rules": ["[broken"]}}}`)
	version, err := s.Refresh(context.Background())

	var ce *rules.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *rules.CompileError, got %v", err)
	}
	if version != 1 {
		t.Errorf("version changed on rejected candidate: %d", version)
	}
	if s.Current().Version != 1 {
		t.Errorf("active snapshot changed on rejected candidate")
	}
	if s.LastError() == nil {
		t.Error("LastError() should report the rejection")
	}
}

func TestStore_FetchFailureKeepsSnapshot(t *testing.T) {
	var failing bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(testDoc))
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, time.Second, nil)
	s, _ := New(src, quietConfig(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	failing = true
	version, err := s.Refresh(context.Background())

	var fe *rules.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *rules.FetchError, got %v", err)
	}
	if version != 1 || s.Current().Version != 1 {
		t.Error("snapshot must survive a failed fetch")
	}

	// Subsequent cycles recover once the source is healthy again.
	failing = false
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("recovery refresh failed: %v", err)
	}
	if s.Current().Version != 2 {
		t.Errorf("expected version 2 after recovery, got %d", s.Current().Version)
	}
}

func TestStore_FallsBackToBundledDefault(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := quietConfig()
	cfg.InitialRetries = 2
	src := NewHTTPSource(ts.URL, time.Second, nil)
	s, _ := New(src, cfg, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	rs := s.Current()
	if rs == nil {
		t.Fatal("store must fall back to bundled default rules")
	}
	if rs.Global == nil || rs.ProviderCount() == 0 {
		t.Error("bundled default rule set looks empty")
	}
}

func TestStore_OnRefreshHook(t *testing.T) {
	var mu sync.Mutex
	var calls []error

	cfg := quietConfig()
	cfg.OnRefresh = func(version int64, err error) {
		mu.Lock()
		calls = append(calls, err)
		mu.Unlock()
	}

	src := &StaticSource{Name: "test", Doc: []byte(testDoc)}
	s, _ := New(src, cfg, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	src.Doc = nil
	s.Refresh(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 {
		t.Fatalf("expected 2 hook calls, got %d", len(calls))
	}
	if calls[0] != nil || calls[1] == nil {
		t.Errorf("hook outcomes wrong: %v", calls)
	}
}

// stallingSource returns docs in fetch order and holds its first fetch
// open until release is closed. started is closed when that fetch begins.
type stallingSource struct {
	mu      sync.Mutex
	docs    [][]byte
	fetches int
	started chan struct{}
	release chan struct{}
}

func (s *stallingSource) Fetch(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	n := s.fetches
	s.fetches++
	i := n
	if i >= len(s.docs) {
		i = len(s.docs) - 1
	}
	doc := s.docs[i]
	s.mu.Unlock()

	if n == 0 {
		close(s.started)
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return doc, nil
}

func (s *stallingSource) Location() string { return "stall" }

func TestStore_OverlappingRefreshesCommitInFetchOrder(t *testing.T) {
	// The first refresh stalls while fetching the older document; a second
	// refresh arrives with the newer one. Whatever the interleaving, the
	// newer document must end up active.
	src := &stallingSource{
		docs:    [][]byte{[]byte(testDoc), []byte(testDocV2)},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, err := New(src, quietConfig(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	first := make(chan struct{})
	go func() {
		defer close(first)
		s.Refresh(context.Background())
	}()
	<-src.started

	second := make(chan struct{})
	go func() {
		defer close(second)
		s.Refresh(context.Background())
	}()

	close(src.release)
	<-first
	<-second

	rs := s.Current()
	if rs == nil {
		t.Fatal("no snapshot committed")
	}
	if len(rs.Global.Rules) != 2 {
		t.Fatalf("active snapshot regressed to the stale document at version %d", rs.Version)
	}
}

func TestStore_ConcurrentCurrentDuringRefresh(t *testing.T) {
	src := &StaticSource{Name: "test", Doc: []byte(testDoc)}
	s, _ := New(src, quietConfig(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Readers: every snapshot must be internally consistent with exactly
	// one committed version, never a mixture.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				// Odd versions commit testDoc (1 global rule), even
				// versions testDocV2 (2 global rules).
				rs := s.Current()
				want := 1
				if rs.Version%2 == 0 {
					want = 2
				}
				if len(rs.Global.Rules) != want {
					t.Errorf("v%d snapshot has %d global rules, want %d", rs.Version, len(rs.Global.Rules), want)
					return
				}
			}
		}()
	}

	// Writer: flip between the two documents.
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			src.Doc = []byte(testDocV2)
		} else {
			src.Doc = []byte(testDoc)
		}
		if _, err := s.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error: %v", err)
		}
	}

	close(done)
	wg.Wait()
}
