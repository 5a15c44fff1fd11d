package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clearlink-hq/hermes/pkg/sanitizer"
)

// Resolved is everything the cleaning pipeline needs for one owner: their
// preferences, the matching sanitize policy, and their compiled custom
// rules.
type Resolved struct {
	Preferences *Preferences
	Policy      sanitizer.Policy
	Rules       []sanitizer.CustomRule
}

// Service validates and serves settings on top of a Backend.
type Service struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service over backend.
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		logger:  logger.With("component", "settings"),
		now:     time.Now,
	}
}

// PreferencesFor returns an owner's preferences, defaults when the owner
// has never saved any.
func (s *Service) PreferencesFor(ctx context.Context, owner string) (*Preferences, error) {
	prefs, err := s.backend.LoadPreferences(ctx, owner)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		return DefaultPreferences(owner), nil
	}
	return prefs, nil
}

// UpdatePreferences persists an owner's preferences.
func (s *Service) UpdatePreferences(ctx context.Context, prefs *Preferences) error {
	if prefs.Owner == "" {
		return fmt.Errorf("preferences owner cannot be empty")
	}
	prefs.UpdatedAt = s.now()
	if err := s.backend.SavePreferences(ctx, prefs); err != nil {
		return err
	}
	s.logger.Info("preferences updated", "owner", prefs.Owner, "enabled", prefs.Enabled)
	return nil
}

// AddCustomRule validates pattern and stores it for owner. The pattern must
// compile as a regular expression; broken patterns never reach storage.
func (s *Service) AddCustomRule(ctx context.Context, owner, pattern string) (sanitizer.CustomRule, error) {
	createdAt := s.now()
	rule, err := sanitizer.NewCustomRule(owner, pattern, createdAt)
	if err != nil {
		return sanitizer.CustomRule{}, err
	}
	if err := s.backend.AddRule(ctx, StoredRule{Owner: owner, Pattern: pattern, CreatedAt: createdAt}); err != nil {
		return sanitizer.CustomRule{}, err
	}
	s.logger.Info("custom rule added", "owner", owner, "pattern", pattern)
	return rule, nil
}

// RemoveCustomRule deletes one of the owner's patterns.
func (s *Service) RemoveCustomRule(ctx context.Context, owner, pattern string) error {
	if err := s.backend.DeleteRule(ctx, owner, pattern); err != nil {
		return err
	}
	s.logger.Info("custom rule removed", "owner", owner, "pattern", pattern)
	return nil
}

// CustomRulesFor returns the owner's compiled rules. A stored pattern that
// no longer compiles is skipped with a warning instead of poisoning the
// whole set.
func (s *Service) CustomRulesFor(ctx context.Context, owner string) ([]sanitizer.CustomRule, error) {
	stored, err := s.backend.ListRules(ctx, owner)
	if err != nil {
		return nil, err
	}
	rules := make([]sanitizer.CustomRule, 0, len(stored))
	for _, sr := range stored {
		rule, err := sanitizer.NewCustomRule(sr.Owner, sr.Pattern, sr.CreatedAt)
		if err != nil {
			s.logger.Warn("skipping stored rule that no longer compiles",
				"owner", sr.Owner, "pattern", sr.Pattern, "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Resolve loads everything the pipeline needs for one owner.
func (s *Service) Resolve(ctx context.Context, owner string) (*Resolved, error) {
	prefs, err := s.PreferencesFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	rules, err := s.CustomRulesFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &Resolved{
		Preferences: prefs,
		Policy: sanitizer.Policy{
			RemoveReferralMarketing: prefs.RemoveReferralMarketing,
			AllowAIFallback:         prefs.AllowAIFallback,
			DomainExceptions:        prefs.DomainExceptions,
		},
		Rules: rules,
	}, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
