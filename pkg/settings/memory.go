package settings

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps everything in process memory. It is the default
// backend; all data is lost on exit.
type MemoryBackend struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
	rules map[string]map[string]StoredRule
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		prefs: make(map[string]Preferences),
		rules: make(map[string]map[string]StoredRule),
	}
}

// SavePreferences inserts or updates an owner's preferences.
func (m *MemoryBackend) SavePreferences(ctx context.Context, prefs *Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *prefs
	cp.DomainExceptions = append([]string(nil), prefs.DomainExceptions...)
	m.prefs[prefs.Owner] = cp
	return nil
}

// LoadPreferences returns an owner's preferences, nil when absent.
func (m *MemoryBackend) LoadPreferences(ctx context.Context, owner string) (*Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[owner]
	if !ok {
		return nil, nil
	}
	cp := p
	cp.DomainExceptions = append([]string(nil), p.DomainExceptions...)
	return &cp, nil
}

// AddRule stores a custom rule.
func (m *MemoryBackend) AddRule(ctx context.Context, rule StoredRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.rules[rule.Owner]
	if owned == nil {
		owned = make(map[string]StoredRule)
		m.rules[rule.Owner] = owned
	}
	if _, ok := owned[rule.Pattern]; ok {
		return ErrDuplicateRule
	}
	owned[rule.Pattern] = rule
	return nil
}

// DeleteRule removes a custom rule.
func (m *MemoryBackend) DeleteRule(ctx context.Context, owner, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.rules[owner]
	if _, ok := owned[pattern]; !ok {
		return ErrRuleNotFound
	}
	delete(owned, pattern)
	return nil
}

// ListRules returns an owner's rules ordered by creation time, pattern
// text breaking ties.
func (m *MemoryBackend) ListRules(ctx context.Context, owner string) ([]StoredRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.rules[owner]
	out := make([]StoredRule, 0, len(owned))
	for _, r := range owned {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out, nil
}

// Ping always succeeds for the in-memory backend.
func (m *MemoryBackend) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (m *MemoryBackend) Close() error { return nil }
