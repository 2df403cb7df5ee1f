package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// RunStatus represents the lifecycle state of a scrape run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ErrRunFinalized is returned when a run that already reached a terminal
// state is finished again.
var ErrRunFinalized = eris.New("scrape run already finalized")

// RunCounts holds the statistics accumulated during one reconciliation pass.
type RunCounts struct {
	Found        int `json:"found"`
	New          int `json:"new"`
	Updated      int `json:"updated"`
	PriceChanged int `json:"price_changed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	Duplicates   int `json:"duplicates"`
	Retired      int `json:"retired"`
	Alerts       int `json:"alerts"`
}

// ScrapeRun is one reconciliation pass.
type ScrapeRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Counts     RunCounts  `json:"counts"`
	Error      string     `json:"error,omitempty"`
}

// Complete transitions a running run to completed.
func (r *ScrapeRun) Complete(counts RunCounts, now time.Time) error {
	return r.finish(RunStatusCompleted, counts, "", now)
}

// Fail transitions a running run to failed with the given detail.
func (r *ScrapeRun) Fail(counts RunCounts, detail string, now time.Time) error {
	if detail == "" {
		detail = "unknown failure"
	}
	return r.finish(RunStatusFailed, counts, detail, now)
}

func (r *ScrapeRun) finish(status RunStatus, counts RunCounts, detail string, now time.Time) error {
	if r.Status != RunStatusRunning {
		return eris.Wrapf(ErrRunFinalized, "run %s is %s", r.ID, r.Status)
	}
	finished := now.UTC()
	r.Status = status
	r.FinishedAt = &finished
	r.Counts = counts
	r.Error = detail
	return nil
}

// Duration returns the elapsed time of a finished run, or zero while running.
func (r *ScrapeRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
