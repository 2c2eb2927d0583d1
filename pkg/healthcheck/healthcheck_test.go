package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func staticChecker(status Status, message string) Checker {
	return CheckerFunc(func(ctx context.Context) Check {
		return Check{Status: status, Message: message}
	})
}

func TestHealthCheck_Check_NoCheckers(t *testing.T) {
	hc := New("1.0.0", zaptest.NewLogger(t))

	response := hc.Check(context.Background())

	assert.Equal(t, StatusHealthy, response.Status)
	assert.Equal(t, "1.0.0", response.Version)
	assert.Empty(t, response.Checks)
}

func TestHealthCheck_Check_AggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New("1.0.0", zaptest.NewLogger(t))
			for i, s := range tt.statuses {
				hc.Register(string(rune('a'+i)), staticChecker(s, ""))
			}

			response := hc.Check(context.Background())

			assert.Equal(t, tt.want, response.Status)
			require.Len(t, response.Checks, len(tt.statuses))
			assert.Equal(t, "a", response.Checks[0].Name)
		})
	}
}

func TestHealthCheck_Check_CachesResults(t *testing.T) {
	hc := New("1.0.0", zaptest.NewLogger(t))
	var calls int32
	hc.Register("db", CheckerFunc(func(ctx context.Context) Check {
		atomic.AddInt32(&calls, 1)
		return Check{Status: StatusHealthy}
	}))

	hc.Check(context.Background())
	hc.Check(context.Background())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	hc.SetCacheTTL(0)
	hc.Check(context.Background())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPingChecker(t *testing.T) {
	ok := PingChecker(func(ctx context.Context) error { return nil }).Check(context.Background())
	assert.Equal(t, StatusHealthy, ok.Status)

	bad := PingChecker(func(ctx context.Context) error { return errors.New("refused") }).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, bad.Status)
	assert.Equal(t, "refused", bad.Message)
}

func TestHandler_StatusCodes(t *testing.T) {
	hc := New("2.0.0", zaptest.NewLogger(t))
	hc.Register("redis", staticChecker(StatusDegraded, "slow"))

	rec := httptest.NewRecorder()
	hc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body, "total_duration_ms")

	hc.Register("db", staticChecker(StatusUnhealthy, "down"))
	rec = httptest.NewRecorder()
	hc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCircuitBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("model", CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(name string, from, to CircuitBreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	now := time.Now()
	cb.now = func() time.Time { return now }
	boom := errors.New("boom")

	assert.Equal(t, boom, cb.Execute(func() error { return boom }, nil))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, boom, cb.Execute(func() error { return boom }, nil))
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.EqualValues(t, 1, cb.GetStats().TotalRejections)

	check := cb.Checker().Check(context.Background())
	assert.Equal(t, StatusDegraded, check.Status)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	cb := NewCircuitBreaker("model", CircuitBreakerConfig{FailureThreshold: 1})
	userErr := errors.New("bad input")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return userErr }, func(err error) bool { return err != userErr })
	}

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 0, cb.GetStats().ConsecutiveFailures)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("model", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second})
	now := time.Now()
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errors.New("x") }, nil)
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errors.New("still down") }, nil)
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Zero(t, cb.GetStats().TotalRequests)
}
