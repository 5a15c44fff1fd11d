package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"clearlink-hq/hermes/pkg/rules"
)

// Config contains configuration for the rule store.
type Config struct {
	// RefreshSchedule is a cron expression for the periodic refresh cycle.
	// Default: "0 4 * * *" (daily at 4 AM). Empty disables scheduling.
	RefreshSchedule string

	// FetchTimeout bounds a single fetch+compile attempt.
	// Default: 30s
	FetchTimeout time.Duration

	// InitialRetries is how many times the startup load is retried before
	// falling back to the bundled default rule set.
	// Default: 3
	InitialRetries int

	// InitialBackoff is the delay before the first startup retry; it doubles
	// after each failed attempt.
	// Default: 2s
	InitialBackoff time.Duration

	// OnRefresh, when set, is invoked after every refresh attempt with the
	// committed version (unchanged on failure) and the error, if any. Used
	// to wire metrics without coupling the store to a collector.
	OnRefresh func(version int64, err error)
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() *Config {
	return &Config{
		RefreshSchedule: "0 4 * * *",
		FetchTimeout:    30 * time.Second,
		InitialRetries:  3,
		InitialBackoff:  2 * time.Second,
	}
}

// Store holds the active RuleSet and replaces it atomically on refresh.
//
// Current is wait-free: it loads the snapshot pointer and returns. In-flight
// callers that already grabbed a snapshot keep using it to completion even
// if a refresh commits mid-call.
type Store struct {
	source Source
	config *Config
	logger *slog.Logger

	active  atomic.Pointer[rules.RuleSet]
	version atomic.Int64

	// refreshMu serializes the fetch+compile+commit cycle across the three
	// triggers (schedule, source watcher, manual Refresh) so overlapping
	// refreshes commit in fetch order and a stale document can never
	// replace a newer snapshot.
	refreshMu sync.Mutex

	mu      sync.Mutex // guards lastErr and running
	lastErr error
	running bool

	cron   *cron.Cron
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a rule store reading from source. Call Start to perform the
// initial load and begin the refresh cycle.
func New(source Source, config *Config, logger *slog.Logger) (*Store, error) {
	if source == nil {
		return nil, fmt.Errorf("rule source cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 30 * time.Second
	}
	if config.InitialRetries <= 0 {
		config.InitialRetries = 3
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		source: source,
		config: config,
		logger: logger.With("component", "rules.store"),
		stopCh: make(chan struct{}),
	}, nil
}

// Start performs the initial load and starts the scheduled refresh cycle.
//
// The initial load retries with exponential backoff; if every attempt fails,
// the bundled default rule set is compiled and committed so the store is
// never left without a usable snapshot.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("store already started")
	}
	s.running = true
	s.mu.Unlock()

	s.initialLoad(ctx)

	if s.config.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(s.config.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", s.config.RefreshSchedule, err)
		}
		s.cron = cron.New()
		_, err := s.cron.AddFunc(s.config.RefreshSchedule, func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), s.config.FetchTimeout)
			defer cancel()
			if _, err := s.Refresh(refreshCtx); err != nil {
				// Failure keeps the previous snapshot; retried next cycle.
				s.logger.Error("scheduled rule refresh failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule rule refresh: %w", err)
		}
		s.cron.Start()
		s.logger.Info("rule refresh scheduled", "schedule", s.config.RefreshSchedule)
	}

	if w, ok := s.source.(Watchable); ok {
		changes, err := w.Watch(ctx)
		if err != nil {
			s.logger.Warn("rule source watch unavailable", "error", err)
		} else {
			s.wg.Add(1)
			go s.watchLoop(changes)
		}
	}

	return nil
}

// initialLoad tries the configured source with backoff, then falls back to
// the bundled default document.
func (s *Store) initialLoad(ctx context.Context) {
	backoff := s.config.InitialBackoff
	for attempt := 1; attempt <= s.config.InitialRetries; attempt++ {
		if _, err := s.Refresh(ctx); err == nil {
			return
		} else {
			s.logger.Warn("initial rule load failed",
				"attempt", attempt,
				"max_attempts", s.config.InitialRetries,
				"error", err,
			)
		}

		if attempt == s.config.InitialRetries {
			break
		}
		select {
		case <-ctx.Done():
			attempt = s.config.InitialRetries
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	// The bundled default always compiles; it ships with the binary and is
	// covered by tests.
	rs, err := rules.Compile([]byte(rules.DefaultDocument))
	if err != nil {
		s.logger.Error("bundled default rules failed to compile", "error", err)
		return
	}
	s.commit(rs)
	s.logger.Warn("falling back to bundled default rules",
		"providers", rs.ProviderCount(),
		"version", rs.Version,
	)
}

// Current returns the active RuleSet snapshot. It never blocks and never
// returns a partially compiled set. Before the first commit it returns nil;
// Start guarantees a commit before returning.
func (s *Store) Current() *rules.RuleSet {
	return s.active.Load()
}

// Version returns the version of the active snapshot, 0 before the first
// commit.
func (s *Store) Version() int64 {
	return s.version.Load()
}

// LastError returns the error from the most recent refresh attempt, nil if
// it succeeded.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Refresh fetches the rule document, compiles it all-or-nothing, and
// atomically replaces the active snapshot. On any failure the previous
// snapshot is retained and the error is returned; the next scheduled cycle
// retries. Concurrent calls run one at a time, each fetching its own
// document.
func (s *Store) Refresh(ctx context.Context) (int64, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	doc, err := s.source.Fetch(ctx)
	if err == nil {
		var rs *rules.RuleSet
		rs, err = rules.Compile(doc)
		if err == nil {
			version := s.commit(rs)
			s.setLastError(nil)
			s.notify(version, nil)
			s.logger.Info("rules refreshed",
				"source", s.source.Location(),
				"version", version,
				"providers", rs.ProviderCount(),
			)
			return version, nil
		}
	}

	s.setLastError(err)
	s.notify(s.version.Load(), err)
	return s.version.Load(), err
}

// commit assigns the next monotonic version and swaps the snapshot pointer.
func (s *Store) commit(rs *rules.RuleSet) int64 {
	rs.Version = s.version.Add(1)
	s.active.Store(rs)
	return rs.Version
}

func (s *Store) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Store) notify(version int64, err error) {
	if s.config.OnRefresh != nil {
		s.config.OnRefresh(version, err)
	}
}

// watchLoop refreshes on out-of-band source changes.
func (s *Store) watchLoop(changes <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.config.FetchTimeout)
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.Error("rule reload after source change failed", "error", err)
			}
			cancel()
		}
	}
}

// Healthy reports whether the store has a committed snapshot. Used by the
// readiness endpoint.
func (s *Store) Healthy(ctx context.Context) error {
	if s.Current() == nil {
		return fmt.Errorf("no rule set committed")
	}
	return nil
}

// Stop stops the refresh cycle and the source watcher.
func (s *Store) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("rule store stopped")
}
