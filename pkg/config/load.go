package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file, applies defaults, and
// validates the result. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	setDefaultBools(cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads a config file and then applies any
// HERMES_* environment overrides on top, re-validating afterwards.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads HERMES_SECTION_FIELD environment variables and
// writes them over the loaded configuration. Unparseable values are
// ignored; validation will still catch inconsistent results.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setList := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			parts := strings.Split(v, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			*dst = parts
		}
	}

	setString("HERMES_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("HERMES_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("HERMES_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("HERMES_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	setDuration("HERMES_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("HERMES_RULES_SOURCE", &cfg.Rules.Source)
	setString("HERMES_RULES_REFRESH_SCHEDULE", &cfg.Rules.RefreshSchedule)
	setDuration("HERMES_RULES_FETCH_TIMEOUT", &cfg.Rules.FetchTimeout)
	setBool("HERMES_RULES_WATCH_FILE", &cfg.Rules.WatchFile)

	setInt("HERMES_SANITIZER_MAX_URL_LENGTH", &cfg.Sanitizer.MaxURLLength)

	setBool("HERMES_EXPANDER_ENABLED", &cfg.Expander.Enabled)
	setList("HERMES_EXPANDER_ALLOWLIST", &cfg.Expander.Allowlist)
	setInt("HERMES_EXPANDER_MAX_HOPS", &cfg.Expander.MaxHops)
	setDuration("HERMES_EXPANDER_TOTAL_TIMEOUT", &cfg.Expander.TotalTimeout)

	setString("HERMES_FALLBACK_ENDPOINT", &cfg.Fallback.Endpoint)
	setDuration("HERMES_FALLBACK_TIMEOUT", &cfg.Fallback.Timeout)

	setBool("HERMES_AUDIT_ENABLED", &cfg.Audit.Enabled)
	setString("HERMES_AUDIT_BACKEND", &cfg.Audit.Backend)
	setString("HERMES_AUDIT_DB_PATH", &cfg.Audit.DBPath)
	setInt("HERMES_AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays)

	setString("HERMES_SETTINGS_BACKEND", &cfg.Settings.Backend)
	setString("HERMES_SETTINGS_DB_PATH", &cfg.Settings.DBPath)

	setString("HERMES_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("HERMES_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("HERMES_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
}
