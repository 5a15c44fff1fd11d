package metrics

import "github.com/prometheus/client_golang/prometheus"

// Fallback round-trip outcomes.
const (
	FallbackHit      = "hit"
	FallbackMiss     = "miss"
	FallbackError    = "error"
	FallbackDisabled = "disabled"
)

// FallbackMetrics tracks inference-fallback round trips.
//
// Metrics:
//   - hermes_fallback_requests_total: round trips by outcome
//   - hermes_fallback_keys_total: keys classified as trackers
type FallbackMetrics struct {
	requestsTotal *prometheus.CounterVec
	keysTotal     prometheus.Counter
}

// NewFallbackMetrics creates and registers the fallback metrics.
func NewFallbackMetrics(namespace, subsystem string, registry *prometheus.Registry) *FallbackMetrics {
	fm := &FallbackMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fallback_requests_total",
				Help:      "Total number of inference fallback round trips by outcome",
			},
			[]string{"outcome"},
		),
		keysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fallback_keys_total",
				Help:      "Total number of keys the fallback classified as trackers",
			},
		),
	}

	registry.MustRegister(fm.requestsTotal, fm.keysTotal)
	return fm
}

// Record registers one fallback round trip.
func (fm *FallbackMetrics) Record(outcome string, trackingKeys int) {
	fm.requestsTotal.WithLabelValues(outcome).Inc()
	if trackingKeys > 0 {
		fm.keysTotal.Add(float64(trackingKeys))
	}
}
