package expander

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAllowlist covers the public shorteners worth a network round trip.
var DefaultAllowlist = []string{
	"bit.ly",
	"tinyurl.com",
	"t.co",
	"goo.gl",
	"rebrand.ly",
	"buff.ly",
	"is.gd",
	"ow.ly",
	"t.me",
	"shorturl.at",
}

const (
	defaultMaxHops       = 5
	defaultPerHopTimeout = 3 * time.Second
	defaultTotalTimeout  = 8 * time.Second
)

// Config controls how far an expansion walk may go.
type Config struct {
	// Allowlist names the shortener hosts that may be fetched. Matching is
	// case-insensitive, ignores ports, and accepts a leading "www.".
	// Defaults to DefaultAllowlist.
	Allowlist []string

	// MaxHops bounds the number of redirects followed.
	MaxHops int

	// PerHopTimeout bounds each individual request.
	PerHopTimeout time.Duration

	// TotalTimeout bounds the whole walk.
	TotalTimeout time.Duration
}

func (c *Config) withDefaults() *Config {
	out := &Config{}
	if c != nil {
		*out = *c
	}
	if len(out.Allowlist) == 0 {
		out.Allowlist = DefaultAllowlist
	}
	if out.MaxHops <= 0 {
		out.MaxHops = defaultMaxHops
	}
	if out.PerHopTimeout <= 0 {
		out.PerHopTimeout = defaultPerHopTimeout
	}
	if out.TotalTimeout <= 0 {
		out.TotalTimeout = defaultTotalTimeout
	}
	return out
}

// Result is the outcome of one expansion walk.
type Result struct {
	// FinalURL is the last URL confirmed on the walk. Equal to the input
	// when the host is not an allowlisted shortener.
	FinalURL string

	// Hops counts redirects actually followed.
	Hops int

	// Partial is set when the walk ended without confirming a final
	// destination (timeout, loop, hop budget, network failure).
	Partial bool
}

// Expander follows shortener redirects. Safe for concurrent use.
type Expander struct {
	cfg       *Config
	client    *http.Client
	allowlist map[string]bool
	logger    *slog.Logger
}

// New creates an Expander. A nil client gets a private one that never
// follows redirects on its own; hop control stays here.
func New(cfg *Config, client *http.Client, logger *slog.Logger) *Expander {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{}
	}
	// Redirects are walked manually so every hop passes the allowlist,
	// loop, and budget checks.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if logger == nil {
		logger = slog.Default()
	}

	allow := make(map[string]bool, len(cfg.Allowlist))
	for _, h := range cfg.Allowlist {
		allow[strings.ToLower(strings.TrimPrefix(h, "www."))] = true
	}

	return &Expander{
		cfg:       cfg,
		client:    client,
		allowlist: allow,
		logger:    logger.With("component", "expander"),
	}
}

// IsShortener reports whether host is on the allowlist.
func (e *Expander) IsShortener(host string) bool {
	host = strings.ToLower(host)
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	return e.allowlist[strings.TrimPrefix(host, "www.")]
}

// Expand follows redirects from rawURL until a non-redirect response, a
// non-allowlisted host, or a budget boundary. The returned result is always
// usable; err explains a partial walk and is nil otherwise.
func (e *Expander) Expand(ctx context.Context, rawURL string) (*Result, error) {
	res := &Result{FinalURL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || !e.IsShortener(u.Hostname()) {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TotalTimeout)
	defer cancel()

	current := u
	seen := map[string]bool{current.String(): true}

	for res.Hops < e.cfg.MaxHops {
		loc, status, err := e.fetchLocation(ctx, current.String())
		if err != nil {
			res.Partial = true
			kind := KindNetwork
			if errors.Is(err, context.DeadlineExceeded) {
				kind = KindTimeout
			}
			eerr := &ExpansionError{URL: current.String(), Kind: kind, Cause: err}
			e.logger.Debug("expansion stopped", "url", current.String(), "kind", kind, "error", err)
			return res, eerr
		}
		if loc == "" {
			// Non-redirect answer: current is the destination.
			e.logger.Debug("expansion complete", "url", current.String(), "hops", res.Hops, "status", status)
			return res, nil
		}

		next, err := current.Parse(loc)
		if err != nil || next.Host == "" {
			res.Partial = true
			return res, &ExpansionError{URL: current.String(), Kind: KindNetwork, Cause: err}
		}

		res.Hops++
		current = next
		res.FinalURL = current.String()

		if seen[res.FinalURL] {
			res.Partial = true
			return res, &ExpansionError{URL: res.FinalURL, Kind: KindLoop}
		}
		seen[res.FinalURL] = true

		// Leaving the shortener network ends the walk; the destination
		// site's own redirects are its business.
		if !e.IsShortener(current.Hostname()) {
			return res, nil
		}
	}

	res.Partial = true
	return res, &ExpansionError{URL: res.FinalURL, Kind: KindHops}
}

// fetchLocation performs one hop. It returns the Location header for
// redirect statuses and the empty string otherwise. Bodies are closed
// unread.
func (e *Expander) fetchLocation(ctx context.Context, urlStr string) (string, int, error) {
	hopCtx, cancel := context.WithTimeout(ctx, e.cfg.PerHopTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hopCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", 0, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if hopCtx.Err() != nil {
			err = hopCtx.Err()
		}
		return "", 0, err
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return resp.Header.Get("Location"), resp.StatusCode, nil
	default:
		return "", resp.StatusCode, nil
	}
}
