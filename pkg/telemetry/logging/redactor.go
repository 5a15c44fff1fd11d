package logging

import "regexp"

// Redactor scrubs sensitive values from log output. URLs pass through
// this service carrying whatever their authors put in them, so logged
// strings get API keys, email addresses, IPv4 addresses, bearer tokens,
// and password-bearing parameters masked before they hit the sink.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the builtin patterns.
func NewRedactor() *Redactor {
	specs := []struct {
		regex       string
		replacement string
	}{
		// API keys, both bare sk- style and key=value style.
		{`sk-[a-zA-Z0-9]+`, "sk-***"},
		{`(?i)(api[-_]?key[=:]\s*)[a-zA-Z0-9._-]+`, "${1}***"},

		// Bearer tokens.
		{`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},

		// Email addresses keep only the first character and the domain.
		{`\b([a-zA-Z0-9])[a-zA-Z0-9._%+-]*@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`, "${1}***@${2}"},

		// IPv4 addresses keep only the first octet.
		{`\b(\d{1,3})\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`, "${1}.*.*.*"},

		// Password-carrying parameters and fields.
		{`(?i)(password|passwd|pwd)[=:]\s*[^\s&]+`, "${1}=***"},
	}

	r := &Redactor{patterns: make([]redactPattern, 0, len(specs))}
	for _, s := range specs {
		r.patterns = append(r.patterns, redactPattern{
			regex:       regexp.MustCompile(s.regex),
			replacement: s.replacement,
		})
	}
	return r
}

// RedactString returns value with every sensitive match masked.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}
