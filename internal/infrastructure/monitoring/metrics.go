// Package monitoring exposes Prometheus metrics and OpenTelemetry tracing
// for the pipeline and its HTTP surface.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection. It records model
// calls for the generation client and state transitions for the pipeline.
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Model metrics
	modelCallsTotal   *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec

	// Pipeline metrics
	transitionsTotal *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
}

// NewMetricsCollector creates a collector on its own registry
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger.Named("metrics"),
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		modelCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_calls_total",
				Help: "Generative model calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		modelCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_call_duration_seconds",
				Help:    "Generative model call latency in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_transitions_total",
				Help: "Pipeline state transitions",
			},
			[]string{"operation", "from", "to"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Finished pipeline runs by outcome",
			},
			[]string{"operation", "outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 120},
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the registry metrics are registered on
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordModelCall implements generation.MetricsRecorder
func (m *MetricsCollector) RecordModelCall(operation, outcome string, duration time.Duration) {
	m.modelCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.modelCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTransition implements pantry.RunObserver
func (m *MetricsCollector) RecordTransition(operation, from, to string) {
	m.transitionsTotal.WithLabelValues(operation, from, to).Inc()
}

// RecordRun implements pantry.RunObserver
func (m *MetricsCollector) RecordRun(operation, outcome string, duration time.Duration) {
	m.runsTotal.WithLabelValues(operation, outcome).Inc()
	m.runDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// HTTPMiddleware records request count and latency by route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
