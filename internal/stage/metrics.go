package stage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricClassificationsTotal   = "sponsor_stage_classifications_total"
	MetricClassificationDuration = "sponsor_stage_classification_duration_seconds"
)

// Metrics contains Prometheus metrics for stage classification.
// All operations are thread-safe.
type Metrics struct {
	classifications *prometheus.CounterVec
	duration        prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them.
func NewMetrics() *Metrics {
	return &Metrics{
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricClassificationsTotal,
				Help: "Total number of sponsor stage classifications by resulting stage",
			},
			[]string{"stage"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricClassificationDuration,
				Help:    "Histogram of stage classification duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.classifications, m.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveClassification records one completed classification.
func (m *Metrics) ObserveClassification(s Stage, seconds float64) {
	m.classifications.WithLabelValues(s.String()).Inc()
	m.duration.Observe(seconds)
}
