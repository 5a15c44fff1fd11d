package metrics

import "github.com/prometheus/client_golang/prometheus"

// Expansion walk outcomes.
const (
	ExpansionComplete = "complete"
	ExpansionPartial  = "partial"
	ExpansionSkipped  = "skipped"
)

// ExpansionMetrics tracks shortener expansion walks.
//
// Metrics:
//   - hermes_expansions_total: walks by outcome
//   - hermes_expansion_hops: redirects followed per walk
type ExpansionMetrics struct {
	expansionsTotal *prometheus.CounterVec
	hops            prometheus.Histogram
}

// NewExpansionMetrics creates and registers the expansion metrics.
func NewExpansionMetrics(namespace, subsystem string, registry *prometheus.Registry) *ExpansionMetrics {
	em := &ExpansionMetrics{
		expansionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "expansions_total",
				Help:      "Total number of shortener expansion walks by outcome",
			},
			[]string{"outcome"},
		),
		hops: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "expansion_hops",
				Help:      "Redirects followed per expansion walk",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
		),
	}

	registry.MustRegister(em.expansionsTotal, em.hops)
	return em
}

// Record registers one expansion walk.
func (em *ExpansionMetrics) Record(outcome string, hops int) {
	em.expansionsTotal.WithLabelValues(outcome).Inc()
	if outcome != ExpansionSkipped {
		em.hops.Observe(float64(hops))
	}
}
