package sanitizer

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"clearlink-hq/hermes/pkg/rules"
)

// maxUnwrapDepth bounds redirect-unwrapping so cyclic redirector chains
// terminate. On reaching the bound the last URL obtained is cleaned as-is.
const maxUnwrapDepth = 5

// aggressiveTrackers are generic tracking keys stripped in the global stage
// even when the rule document lacks them. They cover the search-result
// clutter the upstream ruleset is slow to pick up.
var aggressiveTrackers = map[string]bool{
	"gs_lcrp":   true,
	"oq":        true,
	"sourceid":  true,
	"client":    true,
	"bih":       true,
	"biw":       true,
	"ved":       true,
	"ei":        true,
	"iflsig":    true,
	"adgrpid":   true,
	"nw":        true,
	"matchtype": true,
}

// SnapshotProvider supplies the active rule snapshot. Implemented by
// store.Store; the indirection keeps the sanitizer testable with a fixed
// rule set.
type SnapshotProvider interface {
	Current() *rules.RuleSet
}

// Sanitizer strips tracking parameters from URLs using the active rule
// snapshot. It is safe for concurrent use; every call grabs one snapshot
// and uses it to completion.
type Sanitizer struct {
	store  SnapshotProvider
	logger *slog.Logger
}

// New creates a Sanitizer reading snapshots from store.
func New(store SnapshotProvider, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{
		store:  store,
		logger: logger.With("component", "sanitizer"),
	}
}

// Sanitize cleans rawURL under the caller's custom rules and policy.
//
// The stages run in strict order: parse, exception short-circuit, custom
// rules, provider resolution with bounded redirect-unwrapping, provider
// rules (plus the referral-marketing subset when the policy enables it),
// then global rules. Parameters no rule covers are left untouched.
//
// Sanitize never fails: unparseable input is passed through unchanged with
// ErrorKindParse recorded on the result.
func (s *Sanitizer) Sanitize(rawURL string, custom []CustomRule, policy Policy) *CleaningResult {
	res := &CleaningResult{
		OriginalURL: rawURL,
		CleanedURL:  rawURL,
	}

	snap := s.store.Current()
	if snap != nil {
		res.RuleVersion = snap.Version
	}

	work, addedScheme := normalizeForMatching(rawURL)
	u, err := url.Parse(work)
	if err != nil || u.Host == "" {
		res.ErrorKind = ErrorKindParse
		s.logger.Debug("passing through unparseable input", "error", err)
		return res
	}

	// Unwrap redirector links before any parameter work: the embedded
	// destination is the URL the owner actually shared.
	if snap != nil {
		for depth := 0; depth < maxUnwrapDepth; depth++ {
			urlStr := u.String()
			if policy.ExemptsHost(hostOf(u)) {
				break
			}
			p := snap.Resolve(urlStr)
			if p == nil || p.IsException(urlStr) {
				break
			}
			target, ok := extractRedirect(p, urlStr)
			if !ok {
				break
			}
			nu, perr := url.Parse(target)
			if perr != nil || nu.Host == "" {
				break
			}
			u = nu
			res.Unwrapped = true
			addedScheme = false
		}
	}

	urlStr := u.String()
	var provider *rules.Provider
	if snap != nil {
		provider = snap.Resolve(urlStr)
	}
	if provider != nil {
		res.Provider = provider.Name
	}

	exempt := policy.ExemptsHost(hostOf(u)) ||
		(provider != nil && provider.IsException(urlStr))

	// Custom rules apply even on exception-listed hosts: the owner asked
	// for these removals explicitly.
	changed := s.applyStage(u, res, SourceCustom, func(key string) bool {
		for _, rule := range custom {
			if rule.Matches(key) {
				return true
			}
		}
		return false
	})

	if !exempt {
		if provider != nil {
			changed = s.applyStage(u, res, SourceProvider, func(key string) bool {
				for _, rule := range provider.Rules {
					if rule.Matches(key) {
						return true
					}
				}
				if policy.RemoveReferralMarketing {
					for _, rule := range provider.ReferralMarketing {
						if rule.Matches(key) {
							return true
						}
					}
				}
				return false
			}) || changed

			changed = s.applyRawRules(u, res, provider.RawRules) || changed
		}

		var global *rules.Provider
		if snap != nil {
			global = snap.Global
		}
		changed = s.applyStage(u, res, SourceGlobal, func(key string) bool {
			if aggressiveTrackers[key] {
				return true
			}
			if global == nil {
				return false
			}
			for _, rule := range global.Rules {
				if rule.Matches(key) {
					return true
				}
			}
			if policy.RemoveReferralMarketing {
				for _, rule := range global.ReferralMarketing {
					if rule.Matches(key) {
						return true
					}
				}
			}
			return false
		}) || changed
	}

	if !changed && !res.Unwrapped {
		// Nothing removed: emit the input in its original form, including
		// any scheme-less spelling the normalization papered over.
		res.CleanedURL = rawURL
		return res
	}

	cleaned := u.String()
	if addedScheme {
		// Matching needed a scheme but cleaning didn't; keep the
		// original scheme-less form.
		cleaned = strings.TrimPrefix(cleaned, "http://")
	}
	res.CleanedURL = cleaned

	return res
}

// applyStage filters the query and, when it looks like a pseudo-query, the
// fragment. Every removed key is recorded once with the stage's provenance.
func (s *Sanitizer) applyStage(u *url.URL, res *CleaningResult, source Source, match func(string) bool) bool {
	changed := false

	if u.RawQuery != "" {
		kept, removed := filterPairs(u.RawQuery, match)
		if len(removed) > 0 {
			u.RawQuery = kept
			appendRemovals(res, removed, source)
			changed = true
		}
	}

	if frag := u.EscapedFragment(); frag != "" && strings.Contains(frag, "=") {
		kept, removed := filterPairs(frag, match)
		if len(removed) > 0 {
			setFragment(u, kept)
			appendRemovals(res, removed, source)
			changed = true
		}
	}

	return changed
}

// applyRawRules runs the provider's whole-URL removal patterns. The rewrite
// is accepted only when scheme, host, and path survive intact: raw rules may
// clean query and fragment clutter but never rewrite URL semantics. Query
// keys that disappear are recorded with provider provenance.
func (s *Sanitizer) applyRawRules(u *url.URL, res *CleaningResult, raws []*regexp.Regexp) bool {
	if len(raws) == 0 {
		return false
	}

	orig := u.String()
	rewritten := orig
	for _, re := range raws {
		rewritten = re.ReplaceAllString(rewritten, "")
	}
	if rewritten == orig {
		return false
	}

	nu, err := url.Parse(rewritten)
	if err != nil || nu.Scheme != u.Scheme || nu.Host != u.Host || nu.Path != u.Path {
		s.logger.Debug("raw rule rewrite rejected", "url", orig, "rewritten", rewritten)
		return false
	}

	after := map[string]bool{}
	for _, k := range queryKeys(nu.RawQuery) {
		after[k] = true
	}
	var removed []string
	for _, k := range queryKeys(u.RawQuery) {
		if !after[k] {
			removed = append(removed, k)
		}
	}
	appendRemovals(res, removed, SourceProvider)

	*u = *nu
	return true
}

// decodeKey percent-decodes a parameter key. A literal "+" stays "+":
// form decoding would fold it to a space, but keys compare against rules
// as written.
func decodeKey(key string) string {
	if dec, err := url.PathUnescape(key); err == nil {
		return dec
	}
	return key
}

// queryKeys returns the decoded keys of a raw query string in order of first
// appearance, without duplicates.
func queryKeys(rawQuery string) []string {
	if rawQuery == "" {
		return nil
	}
	seen := map[string]bool{}
	var keys []string
	for _, seg := range strings.Split(rawQuery, "&") {
		if seg == "" {
			continue
		}
		key := seg
		if i := strings.IndexByte(seg, '='); i >= 0 {
			key = seg[:i]
		}
		decoded := decodeKey(key)
		if !seen[decoded] {
			seen[decoded] = true
			keys = append(keys, decoded)
		}
	}
	return keys
}

// RemainingKeys returns the decoded parameter keys still present in urlStr,
// query first, then fragment pseudo-query keys, without duplicates. The
// fallback stage uses this to build its classification request.
func RemainingKeys(urlStr string) []string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil
	}
	keys := queryKeys(u.RawQuery)
	if frag := u.EscapedFragment(); strings.Contains(frag, "=") {
		seen := map[string]bool{}
		for _, k := range keys {
			seen[k] = true
		}
		for _, k := range queryKeys(frag) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// StripKeys removes the named parameter keys from urlStr's query and
// fragment pseudo-query, returning the rewritten URL and the keys actually
// removed. Used for removals decided outside the rule stages.
func StripKeys(urlStr string, keys []string) (string, []string) {
	if len(keys) == 0 {
		return urlStr, nil
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr, nil
	}

	want := map[string]bool{}
	for _, k := range keys {
		want[k] = true
	}
	match := func(key string) bool { return want[key] }

	var removed []string
	if u.RawQuery != "" {
		kept, rm := filterPairs(u.RawQuery, match)
		if len(rm) > 0 {
			u.RawQuery = kept
			removed = append(removed, rm...)
		}
	}
	if frag := u.EscapedFragment(); frag != "" && strings.Contains(frag, "=") {
		kept, rm := filterPairs(frag, match)
		if len(rm) > 0 {
			setFragment(u, kept)
			for _, k := range rm {
				dup := false
				for _, seenKey := range removed {
					if seenKey == k {
						dup = true
						break
					}
				}
				if !dup {
					removed = append(removed, k)
				}
			}
		}
	}
	if len(removed) == 0 {
		return urlStr, nil
	}
	return u.String(), removed
}

// filterPairs walks raw "k=v&k2=v2" text, keeping segments verbatim (their
// original encoding included) unless the decoded key matches. Removed keys
// are returned decoded, deduplicated, in order of first appearance.
func filterPairs(raw string, match func(string) bool) (kept string, removed []string) {
	segs := strings.Split(raw, "&")
	keptSegs := segs[:0:0]
	seen := map[string]bool{}

	for _, seg := range segs {
		if seg == "" {
			keptSegs = append(keptSegs, seg)
			continue
		}
		key := seg
		if i := strings.IndexByte(seg, '='); i >= 0 {
			key = seg[:i]
		}
		decoded := decodeKey(key)
		if match(decoded) {
			if !seen[decoded] {
				seen[decoded] = true
				removed = append(removed, decoded)
			}
			continue
		}
		keptSegs = append(keptSegs, seg)
	}

	return strings.Join(keptSegs, "&"), removed
}

// extractRedirect returns the destination URL embedded in a redirector
// link, trying the raw capture first and a percent-decoded form second.
func extractRedirect(p *rules.Provider, urlStr string) (string, bool) {
	for _, re := range p.Redirections {
		caps := re.FindStringSubmatch(urlStr)
		if len(caps) < 2 || caps[1] == "" {
			continue
		}
		target := caps[1]
		if !strings.HasPrefix(target, "http") {
			if dec, err := url.QueryUnescape(target); err == nil && strings.HasPrefix(dec, "http") {
				return dec, true
			}
			continue
		}
		if dec, err := url.QueryUnescape(target); err == nil && strings.HasPrefix(dec, "http") && strings.Contains(target, "%3A") {
			return dec, true
		}
		return target, true
	}
	return "", false
}

// appendRemovals records removed keys, skipping keys already attributed to
// an earlier stage.
func appendRemovals(res *CleaningResult, keys []string, source Source) {
	for _, k := range keys {
		dup := false
		for _, r := range res.Removals {
			if r.Key == k {
				dup = true
				break
			}
		}
		if !dup {
			res.Removals = append(res.Removals, Removal{Key: k, Source: source})
		}
	}
}

// setFragment updates both the decoded and raw fragment fields so
// URL.String() emits the kept text unmodified.
func setFragment(u *url.URL, frag string) {
	if frag == "" {
		u.Fragment = ""
		u.RawFragment = ""
		return
	}
	if dec, err := url.PathUnescape(frag); err == nil {
		u.Fragment = dec
		u.RawFragment = frag
	} else {
		u.Fragment = frag
		u.RawFragment = ""
	}
}

// hostOf returns the lowercased host without port. Host comparison is
// case-insensitive throughout.
func hostOf(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// normalizeForMatching gives scheme-less input a default scheme so it
// parses; the caller restores the original form when cleaning did not
// require rewriting.
func normalizeForMatching(raw string) (normalized string, addedScheme bool) {
	if strings.Contains(raw, "://") {
		return raw, false
	}
	return "http://" + raw, true
}
