package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	SubmissionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{Name: "submissions_accepted_total", Help: "Submissions accepted and scheduled"})
	SubmissionsRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "submissions_rejected_total", Help: "Submissions rejected before scheduling"})
	RateLimitRejects    = prometheus.NewCounter(prometheus.CounterOpts{Name: "submissions_rate_limit_rejects_total", Help: "Submissions rejected by the per-vendor rate limiter"})
	DeltaBatches        = prometheus.NewCounter(prometheus.CounterOpts{Name: "delta_batches_total", Help: "Delta batches admitted and processed"})
	DeltaRejects        = prometheus.NewCounter(prometheus.CounterOpts{Name: "delta_batches_rejected_total", Help: "Delta batches refused at the admission gate"})
	JobsSucceeded       = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_succeeded_total", Help: "Jobs that reached the success state"})
	JobsFailed          = prometheus.NewCounter(prometheus.CounterOpts{Name: "jobs_failed_total", Help: "Jobs that reached the failed state"})
	GateDepthGauge      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "delta_gate_depth", Help: "Batches holding or waiting on the admission gate"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionsAccepted,
			SubmissionsRejected,
			RateLimitRejects,
			DeltaBatches,
			DeltaRejects,
			JobsSucceeded,
			JobsFailed,
			GateDepthGauge,
		)
	})
	return promhttp.Handler()
}
