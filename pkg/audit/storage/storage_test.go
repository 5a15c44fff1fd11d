package storage

import (
	"context"
	"testing"
	"time"

	"clearlink-hq/hermes/pkg/audit"
)

func seedRecords(t *testing.T, s audit.Storage) time.Time {
	t.Helper()
	base := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)

	records := []*audit.CleaningRecord{
		{
			ID: "r1", Owner: "alice",
			OriginalURL: "https://example.com/?utm_source=x",
			CleanedURL:  "https://example.com/",
			Removals:    []audit.Removal{{Key: "utm_source", Source: "global"}},
			Changed:     true,
			CreatedAt:   base,
		},
		{
			ID: "r2", Owner: "alice",
			OriginalURL: "https://example.com/clean",
			CleanedURL:  "https://example.com/clean",
			CreatedAt:   base.Add(24 * time.Hour),
		},
		{
			ID: "r3", Owner: "bob",
			OriginalURL: "https://shop.test/?ref=a&tag=b",
			CleanedURL:  "https://shop.test/",
			Removals: []audit.Removal{
				{Key: "ref", Source: "provider"},
				{Key: "tag", Source: "provider"},
			},
			Changed:   true,
			CreatedAt: base.Add(25 * time.Hour),
		},
	}
	for _, r := range records {
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store(%s) error: %v", r.ID, err)
		}
	}
	return base
}

func storageUnderTest(t *testing.T, s audit.Storage) {
	t.Helper()
	ctx := context.Background()
	base := seedRecords(t, s)

	t.Run("query by owner newest first", func(t *testing.T) {
		got, err := s.Query(ctx, &audit.Query{Owner: "alice"})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if len(got) != 2 || got[0].ID != "r2" || got[1].ID != "r1" {
			t.Errorf("Query(alice) = %v", ids(got))
		}
		if len(got[1].Removals) != 1 || got[1].Removals[0].Key != "utm_source" {
			t.Errorf("removals did not roundtrip: %+v", got[1].Removals)
		}
	})

	t.Run("query only changed", func(t *testing.T) {
		got, err := s.Query(ctx, &audit.Query{Owner: "alice", OnlyChanged: true})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if len(got) != 1 || got[0].ID != "r1" {
			t.Errorf("Query(alice, changed) = %v", ids(got))
		}
	})

	t.Run("query time window", func(t *testing.T) {
		since := base.Add(12 * time.Hour)
		got, err := s.Query(ctx, &audit.Query{Since: &since})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Query(since) = %v", ids(got))
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.Count(ctx, &audit.Query{})
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if n != 3 {
			t.Errorf("Count() = %d, want 3", n)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		got, err := s.Query(ctx, &audit.Query{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if len(got) != 1 || got[0].ID != "r2" {
			t.Errorf("page 2 = %v", ids(got))
		}
	})

	t.Run("stats by day", func(t *testing.T) {
		stats, err := s.StatsByDay(ctx, "", 7)
		if err != nil {
			t.Fatalf("StatsByDay() error: %v", err)
		}
		var total, changed, removed int64
		for _, st := range stats {
			total += st.Total
			changed += st.Changed
			removed += st.Removed
		}
		if total != 3 || changed != 2 || removed != 3 {
			t.Errorf("stats = %+v", stats)
		}
		if len(stats) > 1 && stats[0].Day < stats[1].Day {
			t.Error("stats not newest first")
		}
	})

	t.Run("delete older than", func(t *testing.T) {
		n, err := s.DeleteOlderThan(ctx, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("DeleteOlderThan() error: %v", err)
		}
		if n != 1 {
			t.Errorf("deleted %d records, want 1", n)
		}
		left, _ := s.Count(ctx, &audit.Query{})
		if left != 2 {
			t.Errorf("%d records left, want 2", left)
		}
	})
}

func ids(records []*audit.CleaningRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	storageUnderTest(t, s)
}

func TestSQLiteStorage(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = t.TempDir() + "/history.db"
	s, err := NewSQLiteStorage(cfg, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error: %v", err)
	}
	defer s.Close()
	storageUnderTest(t, s)
}
