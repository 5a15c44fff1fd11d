package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the collector.
type Config struct {
	// Enabled turns metric recording on. A disabled collector still
	// serves an empty registry.
	Enabled bool

	// Namespace and Subsystem prefix every metric name.
	// Defaults: "clearlink", "hermes".
	Namespace string
	Subsystem string

	// DurationBuckets are the histogram buckets for cleaning durations,
	// in seconds.
	DurationBuckets []float64
}

// Collector owns the service's Prometheus registry and the metric
// subsystems registered in it.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	sanitize  *SanitizeMetrics
	rules     *RuleMetrics
	expansion *ExpansionMetrics
	fallback  *FallbackMetrics
}

// NewCollector creates a collector with its own registry. If registry is
// nil a fresh one is created.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &Config{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "clearlink"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "hermes"
	}
	if len(cfg.DurationBuckets) == 0 {
		// Cleaning is mostly in-memory; expansion and fallback add
		// network time up to a few seconds.
		cfg.DurationBuckets = []float64{0.0005, 0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}
	c.sanitize = NewSanitizeMetrics(cfg.Namespace, cfg.Subsystem, cfg.DurationBuckets, registry)
	c.rules = NewRuleMetrics(cfg.Namespace, cfg.Subsystem, registry)
	c.expansion = NewExpansionMetrics(cfg.Namespace, cfg.Subsystem, registry)
	c.fallback = NewFallbackMetrics(cfg.Namespace, cfg.Subsystem, registry)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCleaning registers one completed cleaning call.
func (c *Collector) RecordCleaning(status string, duration time.Duration, removalsBySource map[string]int) {
	if !c.config.Enabled {
		return
	}
	c.sanitize.Record(status, duration, removalsBySource)
}

// RecordRefresh registers one rule refresh attempt.
func (c *Collector) RecordRefresh(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.rules.RecordRefresh(outcome)
}

// SetActiveRules publishes the active snapshot's version and size.
func (c *Collector) SetActiveRules(version int64, providers int) {
	if !c.config.Enabled {
		return
	}
	c.rules.SetActive(version, providers)
}

// RecordExpansion registers one shortener expansion walk.
func (c *Collector) RecordExpansion(outcome string, hops int) {
	if !c.config.Enabled {
		return
	}
	c.expansion.Record(outcome, hops)
}

// RecordFallback registers one inference fallback round trip.
func (c *Collector) RecordFallback(outcome string, trackingKeys int) {
	if !c.config.Enabled {
		return
	}
	c.fallback.Record(outcome, trackingKeys)
}
