package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError describes a single invalid configuration field.
type FieldError struct {
	// Field is the dotted path of the offending field, e.g.
	// "audit.backend".
	Field string

	// Message explains what is wrong with the value.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every invalid field found in one pass, so a
// broken config file reports all of its problems at once.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid configuration (%d problems): %s",
		len(e.Errors), strings.Join(msgs, "; "))
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem, or nil when the configuration is usable.
func (c *Config) Validate() error {
	var errs []FieldError
	add := func(field, message string) {
		errs = append(errs, FieldError{Field: field, Message: message})
	}

	if c.Server.ListenAddress == "" {
		add("server.listen_address", "must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		add("server.read_timeout", "must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		add("server.write_timeout", "must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		add("server.request_timeout", "must be positive")
	}
	if c.Server.MaxHeaderBytes <= 0 {
		add("server.max_header_bytes", "must be positive")
	}

	if c.Rules.Source == "" {
		add("rules.source", "must be a URL or a file path")
	}
	if c.Rules.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.Rules.RefreshSchedule); err != nil {
			add("rules.refresh_schedule", fmt.Sprintf("invalid cron expression: %v", err))
		}
	}
	if c.Rules.FetchTimeout <= 0 {
		add("rules.fetch_timeout", "must be positive")
	}
	if c.Rules.InitialRetries < 0 {
		add("rules.initial_retries", "must not be negative")
	}

	if c.Sanitizer.MaxURLLength <= 0 {
		add("sanitizer.max_url_length", "must be positive")
	}

	if c.Expander.MaxHops <= 0 {
		add("expander.max_hops", "must be positive")
	}
	if c.Expander.PerHopTimeout <= 0 {
		add("expander.per_hop_timeout", "must be positive")
	}
	if c.Expander.TotalTimeout < c.Expander.PerHopTimeout {
		add("expander.total_timeout", "must be at least per_hop_timeout")
	}

	if c.Fallback.Timeout <= 0 {
		add("fallback.timeout", "must be positive")
	}
	if c.Fallback.MaxKeys <= 0 {
		add("fallback.max_keys", "must be positive")
	}

	if err := validateBackend(c.Audit.Backend, c.Audit.DBPath); err != "" {
		add("audit.backend", err)
	}
	if c.Audit.AsyncBuffer <= 0 {
		add("audit.async_buffer", "must be positive")
	}
	if c.Audit.RetentionDays < 0 {
		add("audit.retention_days", "must not be negative")
	}
	if c.Audit.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Audit.PruneSchedule); err != nil {
			add("audit.prune_schedule", fmt.Sprintf("invalid cron expression: %v", err))
		}
	}

	if err := validateBackend(c.Settings.Backend, c.Settings.DBPath); err != "" {
		add("settings.backend", err)
	}

	switch c.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("telemetry.logging.level", fmt.Sprintf("unknown level %q", c.Telemetry.Logging.Level))
	}
	switch c.Telemetry.Logging.Format {
	case "json", "text":
	default:
		add("telemetry.logging.format", fmt.Sprintf("unknown format %q", c.Telemetry.Logging.Format))
	}
	if c.Telemetry.Metrics.Path == "" || !strings.HasPrefix(c.Telemetry.Metrics.Path, "/") {
		add("telemetry.metrics.path", "must start with /")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateBackend(backend, dbPath string) string {
	switch backend {
	case "memory":
		return ""
	case "sqlite":
		if dbPath == "" {
			return "sqlite backend requires db_path"
		}
		return ""
	default:
		return fmt.Sprintf("unknown backend %q (want memory or sqlite)", backend)
	}
}
