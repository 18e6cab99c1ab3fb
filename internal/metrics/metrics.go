// Package metrics wires Prometheus instrumentation across the HTTP surface
// and the projection consumer, grounded on the prometheus-client-golang
// idiom used elsewhere in the retrieved pack.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector this module registers.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Projection consumer visibility, required explicitly by spec.md §4.4.
	PoisonEvents  *prometheus.CounterVec
	SkippedEvents *prometheus.CounterVec

	// Command handler visibility into the OCC retry envelope.
	CommandRetries  *prometheus.HistogramVec
	CommandOutcomes *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "auction"
	}

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		PoisonEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projector_poison_events_total",
			Help:      "Events whose payload could not be decoded.",
		}, []string{"event_type"}),

		SkippedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projector_skipped_events_total",
			Help:      "Events with an unrecognized event_type that were skipped.",
		}, []string{"event_type"}),

		CommandRetries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_occ_retries",
			Help:      "Number of OCC retries a command needed before succeeding or giving up.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}, []string{"command"}),

		CommandOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_outcomes_total",
			Help:      "Command handler outcomes by error code.",
		}, []string{"command", "outcome"}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.PoisonEvents,
		m.SkippedEvents,
		m.CommandRetries,
		m.CommandOutcomes,
	)

	return m
}

// IncPoisonEvent implements projection.Metrics.
func (m *Metrics) IncPoisonEvent(eventType string) {
	m.PoisonEvents.WithLabelValues(eventType).Inc()
}

// IncSkippedEvent implements projection.Metrics.
func (m *Metrics) IncSkippedEvent(eventType string) {
	m.SkippedEvents.WithLabelValues(eventType).Inc()
}

// ObserveCommandRetries implements auction.Metrics.
func (m *Metrics) ObserveCommandRetries(command string, retries int) {
	m.CommandRetries.WithLabelValues(command).Observe(float64(retries))
}

// IncCommandOutcome implements auction.Metrics.
func (m *Metrics) IncCommandOutcome(command, outcome string) {
	m.CommandOutcomes.WithLabelValues(command, outcome).Inc()
}

// Handler exposes the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records per-request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		m.RequestsTotal.WithLabelValues(r.Method, r.Pattern, status).Inc()
		m.RequestDuration.WithLabelValues(r.Method, r.Pattern).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
