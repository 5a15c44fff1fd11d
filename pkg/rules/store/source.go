package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"clearlink-hq/hermes/pkg/rules"
)

// Source supplies raw rule documents to the store.
type Source interface {
	// Fetch retrieves the current raw rule document.
	Fetch(ctx context.Context) ([]byte, error)

	// Location describes where the document comes from, for logs and errors.
	Location() string
}

// Watchable is implemented by sources that can report out-of-band changes
// (e.g. a local file edited on disk). The channel is closed when the context
// is cancelled.
type Watchable interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// maxDocumentSize bounds a fetched rule document. The upstream ClearURLs
// document is ~100KB; anything past this is a misconfigured source.
const maxDocumentSize = 16 << 20

// HTTPSource fetches rule documents from an HTTP(S) endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSource creates a source fetching from url. A zero timeout defaults
// to 30 seconds per fetch.
func NewHTTPSource(url string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch retrieves the rule document over HTTP.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &rules.FetchError{Source: s.url, Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &rules.FetchError{Source: s.url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &rules.FetchError{
			Source: s.url,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &rules.FetchError{Source: s.url, Cause: err}
	}

	s.logger.Debug("fetched rule document", "source", s.url, "bytes", len(body))
	return body, nil
}

// Location returns the source URL.
func (s *HTTPSource) Location() string {
	return s.url
}

// FileSource reads rule documents from a local file. It is watchable: edits
// to the file trigger a refresh without waiting for the scheduled cycle.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFileSource creates a file-backed rule source.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: path, logger: logger}
}

// Fetch reads the rule document from disk.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &rules.FetchError{Source: s.path, Cause: err}
	}
	return data, nil
}

// Location returns the file path.
func (s *FileSource) Location() string {
	return s.path
}

// Watch reports file changes on the returned channel, debounced so an editor
// writing in several syscalls triggers one refresh. The channel is closed
// when the context is cancelled.
func (s *FileSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := newFileWatcher(s.path, 0, s.logger)
	if err != nil {
		return nil, err
	}
	return w.run(ctx), nil
}

// StaticSource serves a fixed in-memory document. Used for tests and for the
// bundled-default fallback path.
type StaticSource struct {
	Name string
	Doc  []byte
}

// Fetch returns the fixed document.
func (s *StaticSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.Doc, nil
}

// Location returns the source name.
func (s *StaticSource) Location() string {
	if s.Name == "" {
		return "static"
	}
	return s.Name
}
