package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hermes.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Rules.Source != DefaultRulesSource {
		t.Errorf("Rules.Source = %q", cfg.Rules.Source)
	}
	if !cfg.Expander.Enabled || !cfg.Audit.Enabled || !cfg.Telemetry.Metrics.Enabled {
		t.Error("true-by-default booleans are off")
	}
	if cfg.Audit.Backend != "memory" || cfg.Settings.Backend != "memory" {
		t.Errorf("backends = %q/%q", cfg.Audit.Backend, cfg.Settings.Backend)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9090"
  request_timeout: 20s
rules:
  source: "/etc/hermes/rules.json"
  refresh_schedule: "30 2 * * *"
expander:
  enabled: false
audit:
  backend: sqlite
  db_path: "/var/lib/hermes/history.db"
  retention_days: 30
telemetry:
  logging:
    level: debug
    format: text
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Rules.Source != "/etc/hermes/rules.json" {
		t.Errorf("Rules.Source = %q", cfg.Rules.Source)
	}
	if cfg.Expander.Enabled {
		t.Error("explicit expander.enabled=false was lost")
	}
	if cfg.Audit.Backend != "sqlite" || cfg.Audit.RetentionDays != 30 {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Fallback.MaxKeys != DefaultFallbackMaxKeys {
		t.Errorf("Fallback.MaxKeys = %d", cfg.Fallback.MaxKeys)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "127.0.0.1:8080"
`)
	t.Setenv("HERMES_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("HERMES_AUDIT_BACKEND", "sqlite")
	t.Setenv("HERMES_AUDIT_DB_PATH", filepath.Join(t.TempDir(), "h.db"))
	t.Setenv("HERMES_EXPANDER_ENABLED", "false")
	t.Setenv("HERMES_EXPANDER_ALLOWLIST", "bit.ly, t.co")
	t.Setenv("HERMES_FALLBACK_TIMEOUT", "750ms")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Audit.Backend != "sqlite" {
		t.Errorf("Audit.Backend = %q", cfg.Audit.Backend)
	}
	if cfg.Expander.Enabled {
		t.Error("HERMES_EXPANDER_ENABLED=false was lost")
	}
	if len(cfg.Expander.Allowlist) != 2 || cfg.Expander.Allowlist[1] != "t.co" {
		t.Errorf("Allowlist = %v", cfg.Expander.Allowlist)
	}
	if cfg.Fallback.Timeout != 750*time.Millisecond {
		t.Errorf("Fallback.Timeout = %v", cfg.Fallback.Timeout)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverrideFailsValidation(t *testing.T) {
	t.Setenv("HERMES_AUDIT_BACKEND", "postgres")
	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Fatal("expected validation to reject an unknown backend")
	}
}
