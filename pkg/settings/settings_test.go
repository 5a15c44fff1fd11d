package settings

import (
	"context"
	"errors"
	"testing"
	"time"
)

// backendUnderTest runs the shared conformance checks against any Backend.
func backendUnderTest(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("preferences roundtrip", func(t *testing.T) {
		prefs, err := b.LoadPreferences(ctx, "nobody")
		if err != nil {
			t.Fatalf("LoadPreferences() error: %v", err)
		}
		if prefs != nil {
			t.Fatalf("unknown owner returned preferences: %+v", prefs)
		}

		in := &Preferences{
			Owner:                   "alice",
			Enabled:                 true,
			RemoveReferralMarketing: true,
			DomainExceptions:        []string{"bank.example"},
			UpdatedAt:               time.UnixMilli(1700000000000),
		}
		if err := b.SavePreferences(ctx, in); err != nil {
			t.Fatalf("SavePreferences() error: %v", err)
		}

		out, err := b.LoadPreferences(ctx, "alice")
		if err != nil {
			t.Fatalf("LoadPreferences() error: %v", err)
		}
		if out == nil || !out.Enabled || !out.RemoveReferralMarketing || out.AllowAIFallback {
			t.Errorf("roundtrip mismatch: %+v", out)
		}
		if len(out.DomainExceptions) != 1 || out.DomainExceptions[0] != "bank.example" {
			t.Errorf("DomainExceptions = %v", out.DomainExceptions)
		}

		// Saving again overwrites.
		in.Enabled = false
		if err := b.SavePreferences(ctx, in); err != nil {
			t.Fatalf("SavePreferences() error: %v", err)
		}
		out, _ = b.LoadPreferences(ctx, "alice")
		if out.Enabled {
			t.Error("update did not overwrite")
		}
	})

	t.Run("rules lifecycle", func(t *testing.T) {
		base := time.UnixMilli(1700000000000)
		rules := []StoredRule{
			{Owner: "bob", Pattern: "^aff_", CreatedAt: base},
			{Owner: "bob", Pattern: "session", CreatedAt: base.Add(time.Minute)},
			{Owner: "carol", Pattern: "^trk", CreatedAt: base},
		}
		for _, r := range rules {
			if err := b.AddRule(ctx, r); err != nil {
				t.Fatalf("AddRule(%+v) error: %v", r, err)
			}
		}

		if err := b.AddRule(ctx, rules[0]); !errors.Is(err, ErrDuplicateRule) {
			t.Errorf("duplicate AddRule error = %v", err)
		}

		got, err := b.ListRules(ctx, "bob")
		if err != nil {
			t.Fatalf("ListRules() error: %v", err)
		}
		if len(got) != 2 || got[0].Pattern != "^aff_" || got[1].Pattern != "session" {
			t.Errorf("ListRules(bob) = %+v", got)
		}

		if err := b.DeleteRule(ctx, "bob", "session"); err != nil {
			t.Fatalf("DeleteRule() error: %v", err)
		}
		if err := b.DeleteRule(ctx, "bob", "session"); !errors.Is(err, ErrRuleNotFound) {
			t.Errorf("missing DeleteRule error = %v", err)
		}

		got, _ = b.ListRules(ctx, "bob")
		if len(got) != 1 {
			t.Errorf("rules after delete: %+v", got)
		}
		if other, _ := b.ListRules(ctx, "carol"); len(other) != 1 {
			t.Errorf("other owner's rules disturbed: %+v", other)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := b.Ping(ctx); err != nil {
			t.Errorf("Ping() error: %v", err)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()
	backendUnderTest(t, b)
}

func TestSQLiteBackend(t *testing.T) {
	b, err := NewSQLiteBackend(t.TempDir() + "/settings.db")
	if err != nil {
		t.Fatalf("NewSQLiteBackend() error: %v", err)
	}
	defer b.Close()
	backendUnderTest(t, b)
}

func TestService_DefaultsForUnknownOwner(t *testing.T) {
	s := NewService(NewMemoryBackend(), nil)

	resolved, err := s.Resolve(context.Background(), "stranger")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	prefs := resolved.Preferences
	if !prefs.Enabled || prefs.RemoveReferralMarketing || prefs.AllowAIFallback {
		t.Errorf("default preferences wrong: %+v", prefs)
	}
	if len(resolved.Rules) != 0 {
		t.Errorf("unknown owner has rules: %v", resolved.Rules)
	}
}

func TestService_RejectsBrokenPattern(t *testing.T) {
	s := NewService(NewMemoryBackend(), nil)

	if _, err := s.AddCustomRule(context.Background(), "alice", "[broken"); err == nil {
		t.Fatal("broken pattern accepted")
	}
	rules, err := s.CustomRulesFor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CustomRulesFor() error: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("broken pattern reached storage: %v", rules)
	}
}

func TestService_ResolveCarriesPolicy(t *testing.T) {
	s := NewService(NewMemoryBackend(), nil)
	ctx := context.Background()

	err := s.UpdatePreferences(ctx, &Preferences{
		Owner:            "alice",
		Enabled:          true,
		AllowAIFallback:  true,
		DomainExceptions: []string{"intranet.corp"},
	})
	if err != nil {
		t.Fatalf("UpdatePreferences() error: %v", err)
	}
	if _, err := s.AddCustomRule(ctx, "alice", "^aff_"); err != nil {
		t.Fatalf("AddCustomRule() error: %v", err)
	}

	resolved, err := s.Resolve(ctx, "alice")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !resolved.Policy.AllowAIFallback || resolved.Policy.RemoveReferralMarketing {
		t.Errorf("policy = %+v", resolved.Policy)
	}
	if !resolved.Policy.ExemptsHost("wiki.intranet.corp") {
		t.Error("domain exception not carried into policy")
	}
	if len(resolved.Rules) != 1 || !resolved.Rules[0].Matches("aff_id") {
		t.Errorf("rules = %+v", resolved.Rules)
	}
}
