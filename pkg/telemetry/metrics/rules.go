package metrics

import "github.com/prometheus/client_golang/prometheus"

// Rule refresh outcomes.
const (
	RefreshSuccess      = "success"
	RefreshFetchError   = "fetch_error"
	RefreshCompileError = "compile_error"
)

// RuleMetrics tracks the rule store.
//
// Metrics:
//   - hermes_rule_refreshes_total: refresh attempts by outcome
//   - hermes_rule_version: version of the active snapshot
//   - hermes_rule_providers: providers in the active snapshot
type RuleMetrics struct {
	refreshesTotal *prometheus.CounterVec
	activeVersion  prometheus.Gauge
	providerCount  prometheus.Gauge
}

// NewRuleMetrics creates and registers the rule store metrics.
func NewRuleMetrics(namespace, subsystem string, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		refreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_refreshes_total",
				Help:      "Total number of rule refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		activeVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_version",
				Help:      "Version of the active rule snapshot",
			},
		),
		providerCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_providers",
				Help:      "Number of providers in the active rule snapshot",
			},
		),
	}

	registry.MustRegister(rm.refreshesTotal, rm.activeVersion, rm.providerCount)
	return rm
}

// RecordRefresh registers one refresh attempt.
func (rm *RuleMetrics) RecordRefresh(outcome string) {
	rm.refreshesTotal.WithLabelValues(outcome).Inc()
}

// SetActive publishes the active snapshot's version and provider count.
func (rm *RuleMetrics) SetActive(version int64, providers int) {
	rm.activeVersion.Set(float64(version))
	rm.providerCount.Set(float64(providers))
}
