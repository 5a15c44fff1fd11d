package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"clearlink-hq/hermes/pkg/audit"
)

const defaultQueryLimit = 100

// MemoryStorage keeps cleaning records in process memory. All history is
// lost on exit.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*audit.CleaningRecord
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store persists one record.
func (m *MemoryStorage) Store(ctx context.Context, record *audit.CleaningRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	cp.Removals = append([]audit.Removal(nil), record.Removals...)
	m.records = append(m.records, &cp)
	return nil
}

// Query returns records matching q, newest first.
func (m *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.CleaningRecord, error) {
	m.mu.RLock()
	matched := m.match(q)
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if q.Offset >= len(matched) {
		return []*audit.CleaningRecord{}, nil
	}
	matched = matched[q.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*audit.CleaningRecord, len(matched))
	for i, r := range matched {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// Count returns the number of records matching q.
func (m *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.match(q))), nil
}

// match filters under the caller's lock.
func (m *MemoryStorage) match(q *audit.Query) []*audit.CleaningRecord {
	var out []*audit.CleaningRecord
	for _, r := range m.records {
		if q.Owner != "" && r.Owner != q.Owner {
			continue
		}
		if q.Since != nil && r.CreatedAt.Before(*q.Since) {
			continue
		}
		if q.Until != nil && r.CreatedAt.After(*q.Until) {
			continue
		}
		if q.OnlyChanged && !r.Changed {
			continue
		}
		out = append(out, r)
	}
	return out
}

// StatsByDay aggregates per-day activity, newest first.
func (m *MemoryStorage) StatsByDay(ctx context.Context, owner string, days int) ([]audit.DayStat, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	m.mu.RLock()
	byDay := map[string]*audit.DayStat{}
	for _, r := range m.records {
		if owner != "" && r.Owner != owner {
			continue
		}
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		day := r.CreatedAt.UTC().Format("2006-01-02")
		stat := byDay[day]
		if stat == nil {
			stat = &audit.DayStat{Day: day}
			byDay[day] = stat
		}
		stat.Total++
		if r.Changed {
			stat.Changed++
		}
		stat.Removed += int64(len(r.Removals))
	}
	m.mu.RUnlock()

	out := make([]audit.DayStat, 0, len(byDay))
	for _, stat := range byDay {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out, nil
}

// DeleteOlderThan removes records created before cutoff.
func (m *MemoryStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStorage) Close() error { return nil }
