package measure

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMeasure keeps the in-memory metrics and exports node durations as a histogram.
type PrometheusMeasure struct {
	*DefaultMeasure
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewPrometheusMeasure registers the node metrics on reg.
func NewPrometheusMeasure(reg prometheus.Registerer) *PrometheusMeasure {
	factory := promauto.With(reg)

	return &PrometheusMeasure{
		DefaultMeasure: NewDefaultMeasure(),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "labflow",
				Name:      "node_duration_seconds",
				Help:      "Duration of node runs",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"node_type"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labflow",
				Name:      "node_runs_total",
				Help:      "Number of node runs",
			},
			[]string{"node_type"},
		),
	}
}

func (m *PrometheusMeasure) AddMetric(nodeID, nodeType string) Metric {
	return &prometheusMetric{
		Metric:   m.DefaultMeasure.AddMetric(nodeID, nodeType),
		duration: m.duration.WithLabelValues(nodeType),
		runs:     m.runs.WithLabelValues(nodeType),
	}
}

type prometheusMetric struct {
	Metric
	duration prometheus.Observer
	runs     prometheus.Counter
}

func (mt *prometheusMetric) AddDuration(elapsed time.Duration) {
	mt.Metric.AddDuration(elapsed)
	mt.duration.Observe(elapsed.Seconds())
	mt.runs.Inc()
}

var _ Measure = (*PrometheusMeasure)(nil)
