package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homeswipe/internal/config"
)

func newTestAlerter(cfg config.MonitoringConfig) *Alerter {
	a := NewAlerter(cfg)
	a.now = func() time.Time { return now }
	a.retry.InitialBackoff = time.Millisecond
	a.retry.MaxBackoff = 5 * time.Millisecond
	return a
}

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10, MaxPassAgeHours: 6})

	snap := &MetricsSnapshot{
		PassesTotal:     20,
		PassesCompleted: 19,
		PassesFailed:    1,
		FailRate:        0.05,
		LastCompletedAt: ago(time.Hour),
		LookbackHours:   24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		PassesTotal:     20,
		PassesCompleted: 12,
		PassesFailed:    8,
		FailRate:        0.4,
		LookbackHours:   24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPassFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Equal(t, now, alerts[0].Timestamp)
}

func TestAlerter_Evaluate_MinimumPassesRequired(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		PassesTotal:     3,
		PassesCompleted: 1,
		PassesFailed:    2,
		FailRate:        0.666,
		LookbackHours:   24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_StuckPass(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{MaxPassAgeHours: 6})

	snap := &MetricsSnapshot{
		PassesRunning:          1,
		OldestRunningStartedAt: ago(8 * time.Hour),
		LastCompletedAt:        ago(2 * time.Hour),
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPassStuck, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "over 6h")
}

func TestAlerter_Evaluate_NoRecentPass(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{MaxPassAgeHours: 6})

	alerts := a.Evaluate(&MetricsSnapshot{LastCompletedAt: ago(7 * time.Hour)})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNoRecentPass, alerts[0].Type)
	assert.Contains(t, alerts[0].Details, "last_completed_at")

	alerts = a.Evaluate(&MetricsSnapshot{})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertNoRecentPass, alerts[0].Type)
	assert.NotContains(t, alerts[0].Details, "last_completed_at")
}

func TestAlerter_Evaluate_AgeChecksDisabled(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{MaxPassAgeHours: 0})

	snap := &MetricsSnapshot{OldestRunningStartedAt: ago(100 * time.Hour)}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10, MaxPassAgeHours: 6})

	snap := &MetricsSnapshot{
		PassesCompleted:        5,
		PassesFailed:           5,
		FailRate:               0.5,
		PassesRunning:          1,
		OldestRunningStartedAt: ago(12 * time.Hour),
		LastCompletedAt:        ago(13 * time.Hour),
		LookbackHours:          24,
	}

	alerts := a.Evaluate(snap)
	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.Len(t, alerts, 3)
	assert.True(t, types[AlertPassFailureRate])
	assert.True(t, types[AlertPassStuck])
	assert.True(t, types[AlertNoRecentPass])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertPassFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertNoRecentPass, Severity: "medium", Message: "test alert 2"},
	}

	assert.Equal(t, 2, a.SendAlerts(context.Background(), alerts))
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertPassFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := newTestAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := newTestAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertPassStuck, Message: "test"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_PermanentError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := newTestAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertPassFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
	assert.Equal(t, int32(1), calls.Load())
}
