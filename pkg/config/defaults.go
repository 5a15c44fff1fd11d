package config

import "time"

// Default values applied by ApplyDefaults when a field is left unset.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRequestTimeout  = 15 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	// DefaultRulesSource is the upstream ClearURLs catalogue.
	DefaultRulesSource     = "https://rules2.clearurls.xyz/data.minify.json"
	DefaultRefreshSchedule = "0 4 * * *"
	DefaultFetchTimeout    = 30 * time.Second
	DefaultInitialRetries  = 3
	DefaultInitialBackoff  = 2 * time.Second

	DefaultMaxURLLength = 8192

	DefaultMaxHops       = 5
	DefaultPerHopTimeout = 3 * time.Second
	DefaultTotalTimeout  = 8 * time.Second

	DefaultFallbackTimeout = 2 * time.Second
	DefaultFallbackMaxKeys = 32

	DefaultAuditBackend  = "memory"
	DefaultAuditDBPath   = "data/history.db"
	DefaultAsyncBuffer   = 1000
	DefaultAuditTimeout  = 5 * time.Second
	DefaultRetentionDays = 90
	DefaultPruneSchedule = "0 3 * * *"

	DefaultSettingsBackend = "memory"
	DefaultSettingsDBPath  = "data/settings.db"

	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "clearlink"
	DefaultMetricsSubsystem = "hermes"
	DefaultMetricsPath      = "/metrics"
	DefaultCORSMaxAge       = 3600
)

// NewDefaultConfig returns a Config populated with every default.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields in cfg with their defaults.
// Boolean fields that default to true are handled by setDefaultBools,
// which runs before YAML decoding so explicit "false" survives.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	if cfg.Rules.Source == "" {
		cfg.Rules.Source = DefaultRulesSource
	}
	if cfg.Rules.RefreshSchedule == "" {
		cfg.Rules.RefreshSchedule = DefaultRefreshSchedule
	}
	if cfg.Rules.FetchTimeout == 0 {
		cfg.Rules.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Rules.InitialRetries == 0 {
		cfg.Rules.InitialRetries = DefaultInitialRetries
	}
	if cfg.Rules.InitialBackoff == 0 {
		cfg.Rules.InitialBackoff = DefaultInitialBackoff
	}

	if cfg.Sanitizer.MaxURLLength == 0 {
		cfg.Sanitizer.MaxURLLength = DefaultMaxURLLength
	}

	if cfg.Expander.MaxHops == 0 {
		cfg.Expander.MaxHops = DefaultMaxHops
	}
	if cfg.Expander.PerHopTimeout == 0 {
		cfg.Expander.PerHopTimeout = DefaultPerHopTimeout
	}
	if cfg.Expander.TotalTimeout == 0 {
		cfg.Expander.TotalTimeout = DefaultTotalTimeout
	}

	if cfg.Fallback.Timeout == 0 {
		cfg.Fallback.Timeout = DefaultFallbackTimeout
	}
	if cfg.Fallback.MaxKeys == 0 {
		cfg.Fallback.MaxKeys = DefaultFallbackMaxKeys
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = DefaultAuditDBPath
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAsyncBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditTimeout
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultPruneSchedule
	}

	if cfg.Settings.Backend == "" {
		cfg.Settings.Backend = DefaultSettingsBackend
	}
	if cfg.Settings.DBPath == "" {
		cfg.Settings.DBPath = DefaultSettingsDBPath
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// setDefaultBools presets boolean fields whose default is true. YAML
// decoding then overwrites only the fields the file mentions.
func setDefaultBools(cfg *Config) {
	cfg.Server.CORS.Enabled = true
	cfg.Rules.WatchFile = true
	cfg.Expander.Enabled = true
	cfg.Audit.Enabled = true
	cfg.Telemetry.Logging.RedactSensitive = true
	cfg.Telemetry.Metrics.Enabled = true
}
