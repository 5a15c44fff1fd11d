package config

import "time"

// Config is the root configuration structure for Hermes. It contains all
// configuration sections for the HTTP server, the rule store, the cleaning
// stages, the boundary stores, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and CORS.
	Server ServerConfig `yaml:"server"`

	// Rules contains configuration for the rule document source and the
	// refresh schedule.
	Rules RulesConfig `yaml:"rules"`

	// Sanitizer contains configuration for the cleaning engine itself.
	Sanitizer SanitizerConfig `yaml:"sanitizer"`

	// Expander contains configuration for shortener link expansion.
	Expander ExpanderConfig `yaml:"expander"`

	// Fallback contains configuration for the inference fallback endpoint.
	Fallback FallbackConfig `yaml:"fallback"`

	// Audit contains configuration for cleaning history storage and
	// retention.
	Audit AuditConfig `yaml:"audit"`

	// Settings contains configuration for per-owner settings storage.
	Settings SettingsConfig `yaml:"settings"`

	// Telemetry contains configuration for logging, metrics, and health.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds one cleaning request end to end, expansion
	// and fallback included.
	// Default: 15s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig contains CORS configuration for dashboard collaborators.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. ["*"] allows all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	// Default: ["Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache age in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// RulesConfig contains configuration for the rule document source.
type RulesConfig struct {
	// Source is where the rule document comes from: an http(s) URL or a
	// local file path.
	// Default: the upstream ClearURLs catalogue
	Source string `yaml:"source"`

	// RefreshSchedule is a cron expression for scheduled refreshes.
	// Empty disables scheduled refreshing.
	// Default: "0 4 * * *" (daily at 4 AM)
	RefreshSchedule string `yaml:"refresh_schedule"`

	// FetchTimeout bounds one document fetch.
	// Default: 30s
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// InitialRetries is how many times the initial load retries before
	// falling back to the bundled default rules.
	// Default: 3
	InitialRetries int `yaml:"initial_retries"`

	// InitialBackoff is the delay between initial load retries.
	// Default: 2s
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// WatchFile enables hot reload for file sources.
	// Default: true
	WatchFile bool `yaml:"watch_file"`
}

// SanitizerConfig contains configuration for the cleaning engine.
type SanitizerConfig struct {
	// MaxURLLength caps accepted input length. Longer inputs are passed
	// through untouched.
	// Default: 8192
	MaxURLLength int `yaml:"max_url_length"`
}

// ExpanderConfig contains configuration for shortener expansion.
type ExpanderConfig struct {
	// Enabled turns expansion on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Allowlist names the shortener hosts worth a network round trip.
	// Default: the builtin public shortener list
	Allowlist []string `yaml:"allowlist"`

	// MaxHops bounds redirects followed per walk.
	// Default: 5
	MaxHops int `yaml:"max_hops"`

	// PerHopTimeout bounds each request.
	// Default: 3s
	PerHopTimeout time.Duration `yaml:"per_hop_timeout"`

	// TotalTimeout bounds the whole walk.
	// Default: 8s
	TotalTimeout time.Duration `yaml:"total_timeout"`
}

// FallbackConfig contains configuration for the inference fallback.
type FallbackConfig struct {
	// Endpoint is the classification URL. Empty disables the fallback.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one classification round trip.
	// Default: 2s
	Timeout time.Duration `yaml:"timeout"`

	// MaxKeys caps keys per classification request.
	// Default: 32
	MaxKeys int `yaml:"max_keys"`
}

// AuditConfig contains configuration for cleaning history.
type AuditConfig struct {
	// Enabled turns history recording on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// DBPath is the SQLite database path. Required for the sqlite
	// backend.
	// Default: "data/history.db"
	DBPath string `yaml:"db_path"`

	// AsyncBuffer is the async writer's channel capacity.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds enqueueing and storage writes.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is how many days of history to keep. 0 keeps
	// history forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for retention pruning. Empty
	// disables scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// SettingsConfig contains configuration for per-owner settings storage.
type SettingsConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// DBPath is the SQLite database path. Required for the sqlite
	// backend.
	// Default: "data/settings.db"
	DBPath string `yaml:"db_path"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the output encoding: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// RedactSensitive scrubs API keys, email addresses, IPv4 addresses,
	// and password-carrying query values from logged URLs.
	// Default: true
	RedactSensitive bool `yaml:"redact_sensitive"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled turns metric recording on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace and Subsystem prefix every metric name.
	// Defaults: "clearlink", "hermes"
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// Path is where the exposition endpoint is mounted.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// DurationBuckets are histogram buckets for cleaning durations, in
	// seconds. Empty uses the builtin buckets.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}
