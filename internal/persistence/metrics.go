package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the persistence adapter's Prometheus instrumentation
// (spec §4.6: records_per_second, average_batch_latency, retry_depth).
type Metrics struct {
	RecordsTotal   prometheus.Counter
	BatchLatency   prometheus.Histogram
	RetryDepth     prometheus.Gauge
	DeadLetters    prometheus.Counter
	QueueDepth     prometheus.Gauge
}

// NewMetrics builds and registers the adapter's metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registerer across repeated instantiations.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Subsystem: "persistence",
			Name:      "records_total",
			Help:      "Total execution records committed to the durable store.",
		}),
		BatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fenrir",
			Subsystem: "persistence",
			Name:      "batch_latency_seconds",
			Help:      "Commit latency per batch.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		RetryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fenrir",
			Subsystem: "persistence",
			Name:      "retry_depth",
			Help:      "Number of batches currently awaiting a retry.",
		}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fenrir",
			Subsystem: "persistence",
			Name:      "dead_letters_total",
			Help:      "Batches that exhausted max_retries and were dead-lettered.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fenrir",
			Subsystem: "persistence",
			Name:      "queue_depth",
			Help:      "Execution reports currently buffered awaiting batching.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.RecordsTotal, m.BatchLatency, m.RetryDepth, m.DeadLetters, m.QueueDepth)
	}
	return m
}
