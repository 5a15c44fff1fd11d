package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long to wait after the last file event before
// signalling a change, so editors that write in several steps trigger a
// single refresh.
const defaultDebounce = 100 * time.Millisecond

// fileWatcher wraps fsnotify for a single rule document file.
type fileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce *debouncer
	logger   *slog.Logger
}

// newFileWatcher creates a watcher for path. The containing directory is
// watched rather than the file itself so atomic-rename saves keep working.
func newFileWatcher(path string, debounce time.Duration, logger *slog.Logger) (*fileWatcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(path), err)
	}

	return &fileWatcher{
		path:     path,
		watcher:  w,
		debounce: newDebouncer(debounce),
		logger:   logger,
	}, nil
}

// run starts the event loop and returns the change channel. The channel is
// closed when ctx is cancelled.
func (fw *fileWatcher) run(ctx context.Context) <-chan struct{} {
	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer fw.watcher.Close()
		defer fw.debounce.stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fw.watcher.Events:
				if !ok {
					return
				}
				if !fw.relevant(event) {
					continue
				}
				fw.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
				fw.debounce.trigger(func() {
					select {
					case changes <- struct{}{}:
					default: // a change is already pending
					}
				})

			case err, ok := <-fw.watcher.Errors:
				if !ok {
					return
				}
				// Keep watching despite errors.
				fw.logger.Error("rule file watcher error", "error", err)
			}
		}
	}()

	return changes
}

// relevant filters events down to writes of the watched file.
func (fw *fileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(fw.path)
}

// debouncer collapses rapid event bursts into a single callback after a
// quiet period.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

// trigger schedules callback after the debounce interval, resetting any
// pending timer.
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, callback)
}

// stop cancels any pending callback.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
