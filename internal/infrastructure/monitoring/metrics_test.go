package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecofridge/server/internal/infrastructure/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zaptest"
)

func TestMetricsCollector_RecordsPipelineAndModel(t *testing.T) {
	m := NewMetricsCollector(zaptest.NewLogger(t))

	m.RecordModelCall("points_analysis", "ok", 1200*time.Millisecond)
	m.RecordModelCall("points_analysis", "parse_error", time.Second)
	m.RecordTransition("generate", "idle", "generating")
	m.RecordRun("generate", "done", 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelCallsTotal.WithLabelValues("points_analysis", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelCallsTotal.WithLabelValues("points_analysis", "parse_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("generate", "idle", "generating")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("generate", "done")))
}

func TestMetricsCollector_HTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetricsCollector(zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/api/v1/recipes/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recipes/soup", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/recipes/{name}", "418")))

	scrape := httptest.NewRecorder()
	r.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(scrape.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/api/v1/recipes/{name}",status_code="418"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMeterProvider_ExportsOtelInstruments(t *testing.T) {
	m := NewMetricsCollector(zaptest.NewLogger(t))
	res, err := NewResource(config.AppConfig{Name: "ecofridge", Version: "test", Environment: "test"})
	require.NoError(t, err)

	mp, err := NewMeterProvider(m.Registry(), res)
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("ecofridge.model.tokens")
	require.NoError(t, err)
	counter.Add(context.Background(), 42)

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "ecofridge_model_tokens")
}

func TestTracingProvider_DisabledIsNoop(t *testing.T) {
	tp, err := NewTracingProvider(config.MonitoringConfig{EnableTracing: false}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(context.Background()))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
