// Package expander resolves shortened links to their final destination by
// following HTTP redirects one hop at a time.
//
// Only hosts on the shortener allowlist are ever fetched, response bodies are
// never read, and every walk is bounded three ways: a hop budget, a per-hop
// timeout, and a total deadline. Redirect loops are detected by tracking
// visited URLs. Expansion failures are never fatal; the caller always gets a
// usable URL back, flagged partial when the final destination could not be
// confirmed.
package expander
