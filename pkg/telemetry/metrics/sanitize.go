package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sanitize call statuses.
const (
	StatusChanged     = "changed"
	StatusUnchanged   = "unchanged"
	StatusPassthrough = "passthrough"
)

// SanitizeMetrics tracks the cleaning pipeline itself.
//
// Metrics:
//   - hermes_cleanings_total: cleanings by status
//   - hermes_cleaning_duration_seconds: end-to-end cleaning duration
//   - hermes_removals_total: stripped parameters by rule source
type SanitizeMetrics struct {
	cleaningsTotal   *prometheus.CounterVec
	cleaningDuration *prometheus.HistogramVec
	removalsTotal    *prometheus.CounterVec
}

// NewSanitizeMetrics creates and registers the cleaning metrics.
func NewSanitizeMetrics(namespace, subsystem string, buckets []float64, registry *prometheus.Registry) *SanitizeMetrics {
	sm := &SanitizeMetrics{
		cleaningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cleanings_total",
				Help:      "Total number of URL cleanings by outcome",
			},
			[]string{"status"},
		),
		cleaningDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cleaning_duration_seconds",
				Help:      "End-to-end duration of URL cleanings in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		removalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "removals_total",
				Help:      "Total number of stripped parameters by rule source",
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(sm.cleaningsTotal, sm.cleaningDuration, sm.removalsTotal)
	return sm
}

// Record registers one completed cleaning.
func (sm *SanitizeMetrics) Record(status string, duration time.Duration, removalsBySource map[string]int) {
	sm.cleaningsTotal.WithLabelValues(status).Inc()
	sm.cleaningDuration.WithLabelValues(status).Observe(duration.Seconds())
	for source, n := range removalsBySource {
		sm.removalsTotal.WithLabelValues(source).Add(float64(n))
	}
}
