package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	evaluationRequestsTotal  *prometheus.CounterVec
	evaluationLatencySeconds *prometheus.HistogramVec
	evaluationErrorsTotal    *prometheus.CounterVec
	evaluationSubmitsTotal   prometheus.Counter
	autosavesTotal           *prometheus.CounterVec
	notificationsPublished   *prometheus.CounterVec
	sseClientsActive         prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		evaluationRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_requests_total",
			Help: "Total number of evaluation API requests served.",
		}, []string{"method", "route", "status"})

		evaluationLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evaluation_latency_seconds",
			Help:    "Latency distribution for evaluation API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		evaluationErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_errors_total",
			Help: "Total number of error responses returned by evaluation endpoints.",
		}, []string{"method", "route", "status"})

		evaluationSubmitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evaluation_submits_total",
			Help: "Total number of finalized peer evaluations.",
		})

		autosavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_autosaves_total",
			Help: "Total number of debounced autosave flushes by result.",
		}, []string{"result"})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notifications published by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sse_clients_active",
			Help: "Number of currently connected SSE notification clients.",
		})

		prometheus.MustRegister(
			evaluationRequestsTotal,
			evaluationLatencySeconds,
			evaluationErrorsTotal,
			evaluationSubmitsTotal,
			autosavesTotal,
			notificationsPublished,
			sseClientsActive,
		)
	})
}

// EvaluationRequests exposes the counter for evaluation requests.
func EvaluationRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationRequestsTotal
}

// EvaluationLatency exposes the latency histogram for evaluation requests.
func EvaluationLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluationLatencySeconds
}

// EvaluationErrors exposes the counter for evaluation error responses.
func EvaluationErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationErrorsTotal
}

// EvaluationSubmitsTotal exposes the counter for finalized evaluations.
func EvaluationSubmitsTotal() prometheus.Counter {
	RegisterMetrics()
	return evaluationSubmitsTotal
}

// AutosavesTotal exposes the counter for autosave flush results.
func AutosavesTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return autosavesTotal
}

// NotificationsPublishedTotal exposes the counter for published notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// SSEClientsActive exposes the gauge tracking live SSE subscribers.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
