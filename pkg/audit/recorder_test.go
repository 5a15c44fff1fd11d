package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// captureStorage records Store calls for inspection.
type captureStorage struct {
	mu      sync.Mutex
	stored  []*CleaningRecord
	release chan struct{}
}

func (c *captureStorage) Store(ctx context.Context, record *CleaningRecord) error {
	if c.release != nil {
		<-c.release
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = append(c.stored, record)
	return nil
}

func (c *captureStorage) Query(ctx context.Context, q *Query) ([]*CleaningRecord, error) {
	return nil, nil
}
func (c *captureStorage) Count(ctx context.Context, q *Query) (int64, error) { return 0, nil }
func (c *captureStorage) StatsByDay(ctx context.Context, owner string, days int) ([]DayStat, error) {
	return nil, nil
}
func (c *captureStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (c *captureStorage) Ping(ctx context.Context) error { return nil }
func (c *captureStorage) Close() error                   { return nil }

func (c *captureStorage) records() []*CleaningRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*CleaningRecord(nil), c.stored...)
}

func TestRecorder_AssignsIDAndWrites(t *testing.T) {
	cs := &captureStorage{}
	r := NewRecorder(cs, nil, nil)

	err := r.Record(context.Background(), &CleaningRecord{
		Owner:       "alice",
		OriginalURL: "https://example.com/?utm_source=x",
		CleanedURL:  "https://example.com/",
		Changed:     true,
	})
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	r.Close()

	stored := cs.records()
	if len(stored) != 1 {
		t.Fatalf("stored %d records, want 1", len(stored))
	}
	if stored[0].ID == "" {
		t.Error("record ID not assigned")
	}
	if stored[0].CreatedAt.IsZero() {
		t.Error("record timestamp not assigned")
	}
}

func TestRecorder_CloseDrainsBuffer(t *testing.T) {
	cs := &captureStorage{}
	r := NewRecorder(cs, &RecorderConfig{Enabled: true, AsyncBuffer: 64}, nil)

	for i := 0; i < 20; i++ {
		if err := r.Record(context.Background(), &CleaningRecord{Owner: "alice"}); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	r.Close()

	if got := len(cs.records()); got != 20 {
		t.Errorf("stored %d records after Close, want 20", got)
	}
}

func TestRecorder_DisabledDropsSilently(t *testing.T) {
	cs := &captureStorage{}
	r := NewRecorder(cs, &RecorderConfig{Enabled: false}, nil)
	defer r.Close()

	if err := r.Record(context.Background(), &CleaningRecord{Owner: "alice"}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if len(cs.records()) != 0 {
		t.Error("disabled recorder wrote a record")
	}
}

func TestRecorder_FullBufferTimesOut(t *testing.T) {
	cs := &captureStorage{release: make(chan struct{})}
	r := NewRecorder(cs, &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1,
		WriteTimeout: 50 * time.Millisecond,
	}, nil)

	// First record occupies the worker (blocked on release), second fills
	// the buffer, third must time out.
	r.Record(context.Background(), &CleaningRecord{Owner: "a"})
	r.Record(context.Background(), &CleaningRecord{Owner: "b"})
	err := r.Record(context.Background(), &CleaningRecord{Owner: "c"})

	var re *RecorderError
	if !errors.As(err, &re) {
		t.Errorf("expected *RecorderError, got %v", err)
	}

	close(cs.release)
	r.Close()
}
