package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------
// Metrics Tests
// -----------------------------------------------------------------------

func TestMetrics_Evaluations(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvaluation("degen", true, false)
	m.ObserveEvaluation("degen", false, false)
	m.ObserveEvaluation("degen", false, true)
	m.ObserveEvaluation("degen", true, true) // invalidation wins

	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("degen", OutcomePassed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("degen", OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("degen", OutcomeInvalidated)))
}

func TestMetrics_FaultsAndCache(t *testing.T) {
	m := NewMetrics()
	m.RuleFault("liquidity_10k", errors.New("boom"))
	m.RuleFault("liquidity_10k", nil)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.FeedFrame(false)
	m.AlertEmitted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ruleFaults.WithLabelValues("liquidity_10k")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedFrames.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts))
}

func TestMetrics_Histograms(t *testing.T) {
	m := NewMetrics()
	m.ObserveRisk(38, "MEDIUM")
	m.ObserveMoon(14, "LOW")
	m.ObserveScan(250 * time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.riskScore))
	assert.Equal(t, 1, testutil.CollectAndCount(m.moonScore))
	assert.Equal(t, 1, testutil.CollectAndCount(m.scanSeconds))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvaluation("safe", true, false)
	m.ObserveCheck("quick", "A")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `scout_evaluations_total{model="safe",outcome="passed"} 1`)
	assert.Contains(t, string(body), `scout_check_grades_total{grade="A",model="quick"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

// -----------------------------------------------------------------------
// Health Tests
// -----------------------------------------------------------------------

func TestHealth_AggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ComponentStatus
		want     ComponentStatus
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []ComponentStatus{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []ComponentStatus{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []ComponentStatus{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth(time.Second)
			for i, s := range tt.statuses {
				s := s
				h.Register(string(rune('a'+i)), func(context.Context) ComponentHealth {
					return ComponentHealth{Status: s}
				})
			}
			got := h.Check(context.Background())
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.Components, len(tt.statuses))
		})
	}
}

func TestHealth_PingCheckAndOrder(t *testing.T) {
	h := NewHealth(50 * time.Millisecond)
	h.Register("store", PingCheck(func(context.Context) error { return nil }))
	h.Register("cache", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	got := h.Check(context.Background())
	require.Len(t, got.Components, 2)
	assert.Equal(t, "cache", got.Components[0].Name)
	assert.Equal(t, StatusUnhealthy, got.Components[0].Status)
	assert.Contains(t, got.Components[0].Message, "deadline")
	assert.Equal(t, "store", got.Components[1].Name)
	assert.Equal(t, StatusUnhealthy, got.Status)
}
