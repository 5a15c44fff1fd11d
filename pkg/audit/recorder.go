package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig configures the async recorder.
type RecorderConfig struct {
	// Enabled enables history recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds both enqueueing when the buffer is full and the
	// storage write itself.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes cleaning records to storage asynchronously so the
// cleaning path never waits on a database.
type Recorder struct {
	storage    Storage
	config     *RecorderConfig
	recordChan chan *CleaningRecord
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger
}

// NewRecorder creates a recorder over storage and starts its background
// writer.
func NewRecorder(storage Storage, config *RecorderConfig, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *CleaningRecord, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record assigns the record an ID and timestamp and enqueues it. It returns
// quickly; a full buffer drops the record after WriteTimeout rather than
// stalling the caller indefinitely.
func (r *Recorder) Record(ctx context.Context, record *CleaningRecord) error {
	if !r.config.Enabled {
		return nil
	}

	record.ID = uuid.NewString()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	select {
	case r.recordChan <- record:
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("audit buffer full, dropping record",
			"record_id", record.ID,
			"owner", record.Owner,
			"buffer", r.config.AsyncBuffer)
		return &RecorderError{RecordID: record.ID, Cause: context.DeadlineExceeded}
	case <-r.done:
		return &RecorderError{RecordID: record.ID, Cause: context.Canceled}
	case <-ctx.Done():
		return &RecorderError{RecordID: record.ID, Cause: ctx.Err()}
	}
}

// Close drains the buffer and stops the background writer.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.write(record)
		case <-r.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case record := <-r.recordChan:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *CleaningRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to write audit record",
			"record_id", record.ID,
			"error", err)
		return
	}
	r.logger.Debug("audit record written", "record_id", record.ID, "owner", record.Owner)
}
