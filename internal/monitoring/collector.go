package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

// MetricsSnapshot holds a point-in-time view of scrape health.
type MetricsSnapshot struct {
	// Passes started within the lookback window.
	PassesTotal     int     `json:"passes_total"`
	PassesCompleted int     `json:"passes_completed"`
	PassesFailed    int     `json:"passes_failed"`
	PassesRunning   int     `json:"passes_running"`
	FailRate        float64 `json:"fail_rate"`

	// Listing activity across completed passes in the window.
	ListingsNew     int `json:"listings_new"`
	ListingsRetired int `json:"listings_retired"`
	AlertsCreated   int `json:"alerts_created"`

	// OldestRunningStartedAt is set when a pass is still running.
	OldestRunningStartedAt *time.Time `json:"oldest_running_started_at,omitempty"`
	// LastCompletedAt is the finish time of the newest completed pass, if any.
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.ScrapeRun, error)
}

// Collector gathers run metrics from the store.
type Collector struct {
	store RunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of scrape metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		StartedAfter: &cutoff,
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.PassesTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusCompleted:
			snap.PassesCompleted++
			snap.ListingsNew += r.Counts.New
			snap.ListingsRetired += r.Counts.Retired
			snap.AlertsCreated += r.Counts.Alerts
			if r.FinishedAt != nil && (snap.LastCompletedAt == nil || r.FinishedAt.After(*snap.LastCompletedAt)) {
				t := *r.FinishedAt
				snap.LastCompletedAt = &t
			}
		case model.RunStatusFailed:
			snap.PassesFailed++
		case model.RunStatusRunning:
			snap.PassesRunning++
			if snap.OldestRunningStartedAt == nil || r.StartedAt.Before(*snap.OldestRunningStartedAt) {
				t := r.StartedAt
				snap.OldestRunningStartedAt = &t
			}
		}
	}

	if finished := snap.PassesCompleted + snap.PassesFailed; finished > 0 {
		snap.FailRate = float64(snap.PassesFailed) / float64(finished)
	}
	return snap, nil
}
