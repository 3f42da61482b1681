package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and stock metrics. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	inFlight        prometheus.Gauge
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	ledgerEntries   *prometheus.CounterVec
	rejectedAdjusts prometheus.Counter
	rateLimited     *prometheus.CounterVec
}

// New registers every collector on reg. A nil registry yields a no-op Metrics.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		gatherer: reg,
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Change ledger entries written, by change type.",
		}, []string{"change_type"}),
		rejectedAdjusts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_adjustments_rejected_total",
			Help: "Stock adjustments rejected because stock would go negative.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests refused by a rate limiter, by scope.",
		}, []string{"scope"}),
	}

	reg.MustRegister(m.inFlight, m.requests, m.duration, m.ledgerEntries, m.rejectedAdjusts, m.rateLimited)
	return m
}

func (m *Metrics) LedgerEntry(changeType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(normalizeLabel(changeType)).Inc()
}

func (m *Metrics) AdjustmentRejected() {
	if m == nil {
		return
	}
	m.rejectedAdjusts.Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeLabel(scope)).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and latency labelled by the chi route pattern,
// so /api/products/{id} stays one series no matter how many products exist.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)

		m.duration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
