package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"clearlink-hq/hermes/pkg/audit"
	"clearlink-hq/hermes/pkg/expander"
	"clearlink-hq/hermes/pkg/fallback"
	"clearlink-hq/hermes/pkg/sanitizer"
	"clearlink-hq/hermes/pkg/settings"
	"clearlink-hq/hermes/pkg/telemetry/metrics"
)

// Request is one cleaning request.
type Request struct {
	// URL is the link to clean.
	URL string

	// Owner identifies whose settings and custom rules apply.
	Owner string

	// RemoveReferralMarketing and AllowAIFallback override the owner's
	// stored preferences for this call when non-nil.
	RemoveReferralMarketing *bool
	AllowAIFallback         *bool
}

// Deps are the pipeline's collaborators. Sanitizer is required; every
// other dependency is optional and its stage is skipped when nil.
type Deps struct {
	Sanitizer *sanitizer.Sanitizer
	Settings  *settings.Service
	Expander  *expander.Expander
	Fallback  *fallback.Client
	Recorder  *audit.Recorder
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// Pipeline runs cleaning requests end to end. Safe for concurrent use.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

// New creates a Pipeline from deps.
func New(deps Deps) (*Pipeline, error) {
	if deps.Sanitizer == nil {
		return nil, fmt.Errorf("pipeline requires a sanitizer")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		deps:   deps,
		logger: logger.With("component", "pipeline"),
	}, nil
}

// Clean runs one request through every stage and returns the result. The
// result is always usable; degraded stages show up as partial-expansion
// flags or reduced removals, not as errors.
func (p *Pipeline) Clean(ctx context.Context, req *Request) (*sanitizer.CleaningResult, error) {
	if req == nil || req.URL == "" {
		return nil, fmt.Errorf("cleaning request needs a URL")
	}
	start := time.Now()

	resolved := p.resolveSettings(ctx, req.Owner)
	if !resolved.Preferences.Enabled {
		// The owner turned cleaning off; echo the input untouched.
		return &sanitizer.CleaningResult{OriginalURL: req.URL, CleanedURL: req.URL}, nil
	}

	policy := resolved.Policy
	if req.RemoveReferralMarketing != nil {
		policy.RemoveReferralMarketing = *req.RemoveReferralMarketing
	}
	if req.AllowAIFallback != nil {
		policy.AllowAIFallback = *req.AllowAIFallback
	}

	workURL, hops, partial := p.expand(ctx, req.URL)

	res := p.deps.Sanitizer.Sanitize(workURL, resolved.Rules, policy)
	res.OriginalURL = req.URL
	res.ExpansionHops = hops
	res.PartialExpansion = partial

	if policy.AllowAIFallback && res.ErrorKind == "" {
		p.escalate(ctx, res, policy)
	}

	p.record(ctx, req.Owner, res, time.Since(start))
	return res, nil
}

// resolveSettings loads the owner's settings, degrading to defaults when
// the settings store is down.
func (p *Pipeline) resolveSettings(ctx context.Context, owner string) *settings.Resolved {
	if p.deps.Settings == nil {
		return &settings.Resolved{Preferences: settings.DefaultPreferences(owner)}
	}
	resolved, err := p.deps.Settings.Resolve(ctx, owner)
	if err != nil {
		p.logger.Warn("settings unavailable, cleaning with defaults", "owner", owner, "error", err)
		return &settings.Resolved{Preferences: settings.DefaultPreferences(owner)}
	}
	return resolved
}

// expand resolves shortener links. Failures return the input URL with the
// partial flag set.
func (p *Pipeline) expand(ctx context.Context, rawURL string) (finalURL string, hops int, partial bool) {
	if p.deps.Expander == nil {
		return rawURL, 0, false
	}

	res, err := p.deps.Expander.Expand(ctx, rawURL)

	outcome := metrics.ExpansionSkipped
	switch {
	case err != nil:
		outcome = metrics.ExpansionPartial
		p.logger.Debug("expansion ended early", "url", rawURL, "error", err)
	case res.Hops > 0:
		outcome = metrics.ExpansionComplete
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordExpansion(outcome, res.Hops)
	}

	return res.FinalURL, res.Hops, res.Partial
}

// escalate sends still-unclassified keys to the inference fallback and
// strips whatever it flags. Every failure leaves the result as it was.
// Hosts under the policy's domain exceptions are never escalated.
func (p *Pipeline) escalate(ctx context.Context, res *sanitizer.CleaningResult, policy sanitizer.Policy) {
	if p.deps.Fallback == nil || !p.deps.Fallback.Enabled() {
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordFallback(metrics.FallbackDisabled, 0)
		}
		return
	}

	remaining := sanitizer.RemainingKeys(res.CleanedURL)
	if len(remaining) == 0 {
		return
	}
	u, err := url.Parse(res.CleanedURL)
	if err != nil || u.Hostname() == "" {
		return
	}
	if policy.ExemptsHost(u.Hostname()) {
		return
	}

	tracking, err := p.deps.Fallback.Classify(ctx, u.Hostname(), remaining)
	if err != nil {
		if !errors.Is(err, fallback.ErrDisabled) {
			p.logger.Debug("fallback classification failed open", "host", u.Hostname(), "error", err)
		}
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordFallback(metrics.FallbackError, 0)
		}
		return
	}
	if len(tracking) == 0 {
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordFallback(metrics.FallbackMiss, 0)
		}
		return
	}

	cleaned, removed := sanitizer.StripKeys(res.CleanedURL, tracking)
	res.CleanedURL = cleaned
	for _, key := range removed {
		res.Removals = append(res.Removals, sanitizer.Removal{Key: key, Source: sanitizer.SourceAI})
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordFallback(metrics.FallbackHit, len(removed))
	}
}

// record hands the outcome to metrics and the audit trail.
func (p *Pipeline) record(ctx context.Context, owner string, res *sanitizer.CleaningResult, took time.Duration) {
	if p.deps.Metrics != nil {
		status := metrics.StatusUnchanged
		switch {
		case res.ErrorKind != "":
			status = metrics.StatusPassthrough
		case res.Changed():
			status = metrics.StatusChanged
		}
		bySource := map[string]int{}
		for _, r := range res.Removals {
			bySource[string(r.Source)]++
		}
		p.deps.Metrics.RecordCleaning(status, took, bySource)
	}

	if p.deps.Recorder == nil {
		return
	}
	record := &audit.CleaningRecord{
		Owner:            owner,
		OriginalURL:      res.OriginalURL,
		CleanedURL:       res.CleanedURL,
		Provider:         res.Provider,
		RuleVersion:      res.RuleVersion,
		Changed:          res.Changed(),
		Unwrapped:        res.Unwrapped,
		ExpansionHops:    res.ExpansionHops,
		PartialExpansion: res.PartialExpansion,
		ErrorKind:        res.ErrorKind,
		Duration:         took,
	}
	for _, r := range res.Removals {
		record.Removals = append(record.Removals, audit.Removal{Key: r.Key, Source: string(r.Source)})
	}
	if err := p.deps.Recorder.Record(ctx, record); err != nil {
		p.logger.Warn("audit record dropped", "owner", owner, "error", err)
	}
}
