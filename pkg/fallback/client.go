package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout  = 2 * time.Second
	maxResponseSize = 1 << 20
)

// Config controls the inference round trip.
type Config struct {
	// Endpoint is the classification URL. Empty disables the fallback.
	Endpoint string

	// Timeout bounds one classification request.
	Timeout time.Duration

	// MaxKeys caps how many unresolved keys one request may carry. Extra
	// keys stay unclassified.
	MaxKeys int
}

func (c *Config) withDefaults() *Config {
	out := &Config{}
	if c != nil {
		*out = *c
	}
	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}
	if out.MaxKeys <= 0 {
		out.MaxKeys = 32
	}
	return out
}

// request is the wire shape sent to the endpoint. Only the host and the
// bare key names are shared.
type request struct {
	Host           string   `json:"host"`
	UnresolvedKeys []string `json:"unresolvedKeys"`
}

type response struct {
	TrackingKeys []string `json:"trackingKeys"`
}

// Client asks the inference endpoint which keys are trackers. Safe for
// concurrent use.
type Client struct {
	cfg    *Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client. A nil httpClient gets a private one.
func New(cfg *Config, httpClient *http.Client, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logger.With("component", "fallback"),
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Endpoint != ""
}

// Classify asks which of keys are trackers on host. The answer is clipped
// to the keys actually asked about; the endpoint cannot vote parameters it
// was never shown.
//
// Every failure fails open: the returned slice is empty and the error,
// when non-nil, is advisory.
func (c *Client) Classify(ctx context.Context, host string, keys []string) ([]string, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if len(keys) > c.cfg.MaxKeys {
		keys = keys[:c.cfg.MaxKeys]
	}

	body, err := json.Marshal(request{Host: host, UnresolvedKeys: keys})
	if err != nil {
		return nil, &FallbackError{Endpoint: c.cfg.Endpoint, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &FallbackError{Endpoint: c.cfg.Endpoint, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		c.logger.Debug("classification failed open", "host", host, "error", err)
		return nil, &FallbackError{Endpoint: c.cfg.Endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("classification failed open", "host", host, "status", resp.StatusCode)
		return nil, &FallbackError{Endpoint: c.cfg.Endpoint, Status: resp.StatusCode}
	}

	var out response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		c.logger.Debug("classification failed open", "host", host, "error", err)
		return nil, &FallbackError{Endpoint: c.cfg.Endpoint, Cause: err}
	}

	asked := make(map[string]bool, len(keys))
	for _, k := range keys {
		asked[k] = true
	}
	var tracking []string
	for _, k := range out.TrackingKeys {
		if asked[k] {
			tracking = append(tracking, k)
		}
	}
	return tracking, nil
}
