package config

import (
	"fmt"
	"sync"
)

var (
	globalConfig *Config
	globalMu     sync.RWMutex
	initOnce     sync.Once
)

// Initialize loads the configuration from path (with environment
// overrides) and installs it as the process-wide configuration. Only the
// first call loads; later calls return the already-installed config.
func Initialize(path string) (*Config, error) {
	var err error
	initOnce.Do(func() {
		var cfg *Config
		cfg, err = LoadConfigWithEnvOverrides(path)
		if err != nil {
			return
		}
		globalMu.Lock()
		globalConfig = cfg
		globalMu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	return GetConfig(), nil
}

// GetConfig returns the process-wide configuration, or nil when
// Initialize has not run.
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// MustGetConfig returns the process-wide configuration and panics when it
// has not been initialized. For use in paths where a missing config is a
// programming error.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("config: MustGetConfig called before Initialize")
	}
	return cfg
}

// SetConfig replaces the process-wide configuration. Intended for tests.
func SetConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// ReloadConfig re-reads the configuration from path and swaps it in
// atomically. Callers holding the old *Config keep seeing the old values.
func ReloadConfig(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("reloading config: %w", err)
	}
	SetConfig(cfg)
	return cfg, nil
}
