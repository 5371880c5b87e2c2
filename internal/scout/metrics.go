package scout

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRecomputesTotal   = "talent_scout_recomputes_total"
	MetricRecomputeDuration = "talent_scout_recompute_duration_seconds"
	MetricServedTotal       = "talent_scout_served_total"
	MetricInvitesTotal      = "talent_scout_invites_total"
)

// Metrics contains Prometheus metrics for scout ranking.
// All operations are thread-safe.
type Metrics struct {
	recomputes *prometheus.CounterVec
	duration   prometheus.Histogram
	served     *prometheus.CounterVec
	invites    prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them.
func NewMetrics() *Metrics {
	return &Metrics{
		recomputes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRecomputesTotal,
				Help: "Total number of scout ranking recomputations by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRecomputeDuration,
				Help:    "Histogram of scout recomputation duration in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
		),
		served: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricServedTotal,
				Help: "Total number of scout listings served by source",
			},
			[]string{"source"},
		),
		invites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricInvitesTotal,
				Help: "Total number of scout invites sent",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.recomputes, m.duration, m.served, m.invites} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRecompute records one completed recomputation.
func (m *Metrics) ObserveRecompute(outcome string, seconds float64) {
	m.recomputes.WithLabelValues(outcome).Inc()
	m.duration.Observe(seconds)
}

// ObserveServed records one served scout listing. Source is "fresh" when the
// stored ranking was reused and "recomputed" when it was rebuilt.
func (m *Metrics) ObserveServed(source string) {
	m.served.WithLabelValues(source).Inc()
}

// ObserveInvite records one sent invite.
func (m *Metrics) ObserveInvite() {
	m.invites.Inc()
}
