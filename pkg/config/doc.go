// Package config defines the Hermes configuration structure and handles
// loading it from YAML files and environment variables.
//
// # Loading
//
// LoadConfig reads a YAML file, fills unset fields with defaults, and
// validates the result. An empty path yields a pure-defaults Config,
// which is valid and runs an in-memory instance:
//
//	cfg, err := config.LoadConfig("hermes.yaml")
//
// # Environment overrides
//
// LoadConfigWithEnvOverrides additionally applies HERMES_SECTION_FIELD
// environment variables over the file, so deployments can tweak single
// values without editing YAML:
//
//	HERMES_SERVER_LISTEN_ADDRESS=0.0.0.0:9090
//	HERMES_AUDIT_BACKEND=sqlite
//	HERMES_AUDIT_DB_PATH=/var/lib/hermes/history.db
//
// Precedence, lowest to highest: defaults, YAML file, environment.
//
// # Validation
//
// Validate collects every problem into one ValidationError instead of
// stopping at the first, so a broken file reports all of its issues in a
// single run.
//
// # Process-wide access
//
// Initialize installs a singleton for code that cannot take a *Config
// parameter; GetConfig and MustGetConfig read it, ReloadConfig swaps it.
// New code should prefer passing *Config explicitly.
package config
