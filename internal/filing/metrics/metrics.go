package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the filing subsystem.
type Metrics struct {
	SubmissionsTotal  *prometheus.CounterVec
	PreflightFailures prometheus.Counter
	TransportErrors   prometheus.Counter
	PollsTotal        prometheus.Counter
	SweepDuration     prometheus.Histogram
}

// New creates and registers all filing metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "refiling_submissions_total",
			Help: "Submission lifecycle transitions by resulting status",
		}, []string{"status"}),
		PreflightFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refiling_preflight_failures_total",
			Help: "Documents blocked before transmission by preflight validation",
		}),
		TransportErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refiling_transport_errors_total",
			Help: "Transport failures after bounded retries",
		}),
		PollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "refiling_polls_total",
			Help: "Individual submission polls executed by the sweep",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "refiling_sweep_duration_seconds",
			Help:    "Wall time of one poll sweep pass",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveTransition records a status transition.
func (m *Metrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(status).Inc()
}
