package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

// Runner runs one pass.
type Runner interface {
	RunPass(ctx context.Context) (*model.ScrapeRun, error)
}

// Scheduler runs a pass immediately and then on every interval tick until
// the context is cancelled.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	log      *zap.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(r Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		runner:   r,
		interval: interval,
		log:      zap.L().With(zap.String("component", "pipeline.scheduler")),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("starting scrape scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scrape scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	run, err := s.runner.RunPass(ctx)
	switch {
	case errors.Is(err, store.ErrRunInProgress):
		s.log.Info("scrape pass skipped: another pass is running")
	case err != nil && ctx.Err() != nil:
		s.log.Info("scrape pass interrupted by shutdown", zap.Error(err))
	case err != nil:
		s.log.Error("scrape pass failed", zap.Error(err))
	default:
		s.log.Info("scrape pass completed",
			zap.String("run_id", run.ID),
			zap.Int("found", run.Counts.Found),
			zap.Int("retired", run.Counts.Retired),
		)
	}
}
