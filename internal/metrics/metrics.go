package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the job lifecycle: one counter per terminal outcome, a
// gauge for jobs between submission and terminal state, and the staged
// payload volume.
type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsInflight  prometheus.Gauge
	StagedBytes   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "directprint",
			Name:      "jobs_submitted_total",
			Help:      "Print jobs accepted for dispatch.",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "directprint",
			Name:      "jobs_completed_total",
			Help:      "Print jobs that reached the completed state.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "directprint",
			Name:      "jobs_failed_total",
			Help:      "Print jobs that reached the failed state.",
		}),
		JobsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "directprint",
			Name:      "jobs_inflight",
			Help:      "Jobs submitted but not yet terminal.",
		}),
		StagedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "directprint",
			Name:      "staged_bytes_total",
			Help:      "Document bytes written to the staging directory.",
		}),
	}
}
