package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/config"
	"github.com/sells-group/homeswipe/internal/resilience"
)

// AlertType identifies the kind of operational alert.
type AlertType string

const (
	AlertPassFailureRate AlertType = "pass_failure_rate"
	AlertPassStuck       AlertType = "pass_stuck"
	AlertNoRecentPass    AlertType = "no_recent_pass"
)

// minFinishedForRate is the number of finished passes needed before the
// failure rate is trusted.
const minFinishedForRate = 5

// Alert is a single operational alert posted to the webhook. These are
// unrelated to the listing alerts users receive.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("webhook", "send alert")
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
		now:    time.Now,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := a.now().UTC()

	finished := snap.PassesCompleted + snap.PassesFailed
	if finished >= minFinishedForRate && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPassFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Scrape pass failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.PassesFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.PassesFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MaxPassAgeHours <= 0 {
		return alerts
	}
	maxAge := time.Duration(a.cfg.MaxPassAgeHours) * time.Hour

	if started := snap.OldestRunningStartedAt; started != nil && now.Sub(*started) > maxAge {
		alerts = append(alerts, Alert{
			Type:     AlertPassStuck,
			Severity: "high",
			Message: fmt.Sprintf("Scrape pass running since %s (over %dh)",
				started.Format(time.RFC3339), a.cfg.MaxPassAgeHours),
			Details: map[string]any{
				"started_at": started.Format(time.RFC3339),
				"running":    snap.PassesRunning,
			},
			Timestamp: now,
		})
	}

	if last := snap.LastCompletedAt; last == nil || now.Sub(*last) > maxAge {
		msg := fmt.Sprintf("No scrape pass completed in the last %dh", a.cfg.MaxPassAgeHours)
		details := map[string]any{"max_pass_age_hours": a.cfg.MaxPassAgeHours}
		if last != nil {
			details["last_completed_at"] = last.Format(time.RFC3339)
		}
		alerts = append(alerts, Alert{
			Type:      AlertNoRecentPass,
			Severity:  "medium",
			Message:   msg,
			Details:   details,
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.StatusError("monitoring: webhook", resp.StatusCode, body)
	}
	return nil
}
