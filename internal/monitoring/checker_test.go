package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/config"
	"github.com/sells-group/homeswipe/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(newTestCollector(&mockRuns{}), newTestAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(newTestCollector(&mockRuns{}), newTestAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.NotNil(t, checker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_Check_SendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.5,
		MaxPassAgeHours:      6,
	}
	runs := &mockRuns{runs: []model.ScrapeRun{
		finishedRun(model.RunStatusCompleted, 10*time.Hour, model.RunCounts{}),
	}}
	checker := NewChecker(newTestCollector(runs), newTestAlerter(cfg), cfg)

	triggered := checker.Check(context.Background(), zap.NewNop())
	assert.Equal(t, 1, triggered)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_Check_CollectError(t *testing.T) {
	cfg := config.MonitoringConfig{MaxPassAgeHours: 6}
	checker := NewChecker(newTestCollector(&mockRuns{listErr: assert.AnError}), newTestAlerter(cfg), cfg)
	assert.Equal(t, 0, checker.Check(context.Background(), zap.NewNop()))
}
