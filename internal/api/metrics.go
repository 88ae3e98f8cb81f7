package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the API and view computation.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	viewDuration    *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowlens_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowlens_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		viewDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowlens_view_compute_duration_seconds",
				Help:    "Duration of workflow view computation",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"cached"},
		),
	}
	m.registry.MustRegister(m.requests, m.requestDuration, m.viewDuration)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveView records one view computation. It matches view.Observer.
func (m *Metrics) ObserveView(_ string, elapsed time.Duration, cached bool) {
	m.viewDuration.WithLabelValues(strconv.FormatBool(cached)).Observe(elapsed.Seconds())
}

// middleware counts requests by chi route pattern so IDs do not explode
// label cardinality.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying Flusher.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
