package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// GlobalProviderName is the document key of the catch-all rule group.
const GlobalProviderName = "globalRules"

// RawDocument is the wire format of a rule document: a ClearURLs-compatible
// JSON object keyed by provider name.
type RawDocument struct {
	Providers map[string]RawProvider `json:"providers"`
}

// RawProvider is a single uncompiled provider entry.
type RawProvider struct {
	URLPattern        string   `json:"urlPattern"`
	Rules             []string `json:"rules"`
	RawRules          []string `json:"rawRules"`
	ReferralMarketing []string `json:"referralMarketing"`
	Exceptions        []string `json:"exceptions"`
	Redirections      []string `json:"redirections"`
	ForceRedirection  bool     `json:"forceRedirection"`
	CompleteProvider  bool     `json:"completeProvider"`
}

// Compile parses and compiles a raw rule document into a RuleSet.
//
// Compilation is all-or-nothing: if any provider is missing its URL pattern
// or any pattern fails to compile, the whole candidate is rejected with a
// *CompileError listing every problem found. The returned RuleSet carries
// version 0; the store assigns the monotonic version at commit time.
func Compile(doc []byte) (*RuleSet, error) {
	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}

	var raw RawDocument
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, &CompileError{Problems: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}
	if len(raw.Providers) == 0 {
		return nil, ErrNoProviders
	}

	var problems []string
	var providers []*Provider
	var global *Provider

	for name, rp := range raw.Providers {
		p, errs := compileProvider(name, rp)
		if len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		if name == GlobalProviderName {
			global = p
		} else {
			providers = append(providers, p)
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &CompileError{Problems: problems}
	}

	// Deterministic resolution order: most specific pattern first, ties by
	// ascending provider name.
	sort.Slice(providers, func(i, j int) bool {
		if providers[i].specificity != providers[j].specificity {
			return providers[i].specificity > providers[j].specificity
		}
		return providers[i].Name < providers[j].Name
	})

	return &RuleSet{
		CompiledAt: time.Now().UTC(),
		Providers:  providers,
		Global:     global,
	}, nil
}

// compileProvider compiles one provider entry, collecting every problem
// rather than stopping at the first.
func compileProvider(name string, rp RawProvider) (*Provider, []string) {
	var problems []string

	if rp.URLPattern == "" {
		problems = append(problems, fmt.Sprintf("provider %q: missing urlPattern", name))
	}

	urlPattern, err := regexp.Compile(rp.URLPattern)
	if err != nil && rp.URLPattern != "" {
		problems = append(problems, fmt.Sprintf("provider %q: urlPattern: %v", name, err))
	}

	compileList := func(field string, list []string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(list))
		for _, src := range list {
			re, err := regexp.Compile(src)
			if err != nil {
				problems = append(problems, fmt.Sprintf("provider %q: %s %q: %v", name, field, src, err))
				continue
			}
			out = append(out, re)
		}
		return out
	}

	compileParams := func(field string, list []string) []*ParamRule {
		out := make([]*ParamRule, 0, len(list))
		for _, src := range list {
			rule, err := compileParamRule(src)
			if err != nil {
				problems = append(problems, fmt.Sprintf("provider %q: %s %q: %v", name, field, src, err))
				continue
			}
			out = append(out, rule)
		}
		return out
	}

	p := &Provider{
		Name:              name,
		URLPattern:        urlPattern,
		Rules:             compileParams("rule", rp.Rules),
		ReferralMarketing: compileParams("referralMarketing rule", rp.ReferralMarketing),
		RawRules:          compileList("rawRule", rp.RawRules),
		Redirections:      compileList("redirection", rp.Redirections),
		Exceptions:        compileList("exception", rp.Exceptions),
		ForceRedirection:  rp.ForceRedirection,
		specificity:       patternSpecificity(rp.URLPattern),
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return p, nil
}

// compileParamRule compiles a single parameter rule. Plain names (no regex
// metacharacters) become exact-match rules; everything else is compiled as a
// regular expression anchored to the whole key. A "(?i)" prefix marks the
// rule case-insensitive; key comparison is case-sensitive otherwise.
func compileParamRule(src string) (*ParamRule, error) {
	if src == "" {
		return nil, fmt.Errorf("empty rule")
	}

	caseInsensitive := false
	body := src
	if strings.HasPrefix(body, "(?i)") {
		caseInsensitive = true
		body = strings.TrimPrefix(body, "(?i)")
	}

	if regexp.QuoteMeta(body) == body {
		return &ParamRule{
			Pattern:         src,
			CaseInsensitive: caseInsensitive,
			exact:           body,
		}, nil
	}

	anchored := "^(?:" + body + ")$"
	if caseInsensitive {
		anchored = "(?i)" + anchored
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		return nil, err
	}
	return &ParamRule{
		Pattern:         src,
		CaseInsensitive: caseInsensitive,
		re:              re,
	}, nil
}
