package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newTestMetrics builds a Metrics against a private registry, so tests
// don't collide with each other (or a real process) on the global
// Prometheus default registry that New() registers against.
func newTestMetrics(namespace string) (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()

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

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.PoisonEvents,
		m.SkippedEvents,
		m.CommandRetries,
		m.CommandOutcomes,
	)

	return m, registry
}

func TestMiddleware_RecordsRequestsTotalAndDuration(t *testing.T) {
	m, _ := newTestMetrics("mw")

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux := http.NewServeMux()
	mux.Handle("POST /bid", testHandler)
	wrapped := m.Middleware(mux)

	req := httptest.NewRequest("POST", "/bid", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "POST /bid", "201"))
	if count != 1 {
		t.Errorf("expected RequestsTotal to be 1, got %f", count)
	}
	if n := testutil.CollectAndCount(m.RequestDuration); n != 1 {
		t.Errorf("expected one RequestDuration series, got %d", n)
	}
}

func TestMiddleware_DefaultStatusIsOKWhenUnset(t *testing.T) {
	m, _ := newTestMetrics("mw_default")

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok")) // no explicit WriteHeader call
	})
	mux := http.NewServeMux()
	mux.Handle("GET /health", testHandler)
	wrapped := m.Middleware(mux)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, req)

	count := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "GET /health", "200"))
	if count != 1 {
		t.Errorf("expected RequestsTotal to default to 200, got %f", count)
	}
}

func TestIncPoisonEvent(t *testing.T) {
	m, _ := newTestMetrics("poison")

	m.IncPoisonEvent("BidPlaced")
	m.IncPoisonEvent("BidPlaced")
	m.IncPoisonEvent("BuyNowExecuted")

	if got := testutil.ToFloat64(m.PoisonEvents.WithLabelValues("BidPlaced")); got != 2 {
		t.Errorf("expected 2 poison events for BidPlaced, got %f", got)
	}
	if got := testutil.ToFloat64(m.PoisonEvents.WithLabelValues("BuyNowExecuted")); got != 1 {
		t.Errorf("expected 1 poison event for BuyNowExecuted, got %f", got)
	}
}

func TestIncSkippedEvent(t *testing.T) {
	m, _ := newTestMetrics("skipped")

	m.IncSkippedEvent("Unknown")

	if got := testutil.ToFloat64(m.SkippedEvents.WithLabelValues("Unknown")); got != 1 {
		t.Errorf("expected 1 skipped event, got %f", got)
	}
}

func TestHandler_ServesExposition(t *testing.T) {
	handler := Handler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusServiceUnavailable)

	if rw.statusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rw.statusCode)
	}
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected underlying writer to observe 503, got %d", w.Code)
	}
}
