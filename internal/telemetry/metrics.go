package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	SendAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_send_attempts_total",
		Help: "Channel send attempts by provider and outcome class",
	}, []string{"provider", "class"})
	SendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatcher_send_duration_seconds",
		Help:    "Latency of a single channel send attempt",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	RecipientOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_recipient_outcomes_total",
		Help: "Final per-recipient outcomes after retries",
	}, []string{"class"})
	Retries             = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatcher_send_retries_total", Help: "Send attempts beyond the first for a recipient"})
	PersistenceFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatcher_persistence_failures_total", Help: "Outcome writes to the store or cache that failed"})
	Batches             = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_batches_total",
		Help: "Batches by final state",
	}, []string{"state"})
	ActiveJob = prometheus.NewGauge(prometheus.GaugeOpts{Name: "dispatcher_active_job", Help: "1 while a batch is running"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			SendAttempts,
			SendDuration,
			RecipientOutcomes,
			Retries,
			PersistenceFailures,
			Batches,
			ActiveJob,
		)
	})
	return promhttp.Handler()
}
