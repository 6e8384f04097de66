package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bodega_commands_total",
			Help: "Total number of commands handled, by intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)
	commandDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bodega_command_duration_seconds",
			Help:    "Command latency from classification to annotated result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)
	statementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bodega_statements_total",
			Help: "Total number of SQL statements executed, by backend.",
		},
		[]string{"backend"},
	)
	batchRollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bodega_batch_rollbacks_total",
			Help: "Total number of rolled back batches, by backend and error kind.",
		},
		[]string{"backend", "kind"},
	)
	openConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bodega_open_connections",
			Help: "Current number of cached connection pools.",
		},
	)
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bodega_provider_requests_total",
			Help: "Total number of text generation requests, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		commandsTotal,
		commandDurationSeconds,
		statementsTotal,
		batchRollbacksTotal,
		openConnections,
		providerRequestsTotal,
	)
}

// ObserveCommand registra un comando terminado. outcome es "ok" o el tipo de error.
func ObserveCommand(intent, outcome string, elapsed time.Duration) {
	if intent == "" {
		intent = "unknown"
	}
	commandsTotal.WithLabelValues(intent, outcome).Inc()
	commandDurationSeconds.WithLabelValues(intent).Observe(elapsed.Seconds())
}

func ObserveStatements(backend string, n int) {
	if n > 0 {
		statementsTotal.WithLabelValues(backend).Add(float64(n))
	}
}

func IncrementRollback(backend, kind string) {
	batchRollbacksTotal.WithLabelValues(backend, kind).Inc()
}

func SetOpenConnections(n int) {
	if n < 0 {
		n = 0
	}
	openConnections.Set(float64(n))
}

func ObserveProviderRequest(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
}
