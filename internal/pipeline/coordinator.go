// Package pipeline runs scrape passes: extract snapshots, reconcile them
// against the store, derive alerts and retire listings that disappeared.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/alert"
	"github.com/sells-group/homeswipe/internal/extract"
	"github.com/sells-group/homeswipe/internal/metrics"
	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/reconcile"
	"github.com/sells-group/homeswipe/internal/store"
)

// ErrNoData fails a pass whose source produced no usable snapshot. Without
// it an empty extraction would retire every listing once the grace window
// has passed.
var ErrNoData = eris.New("pipeline: no snapshots extracted")

// Store is the subset of store.Store a pass needs.
type Store interface {
	store.ListingWriter
	store.RunStore
}

// Enricher fills in missing snapshot data before reconciliation.
type Enricher interface {
	Enrich(ctx context.Context, snap *model.Snapshot) bool
}

// Config holds pass settings.
type Config struct {
	// RetirementGrace is how long a listing may be missing from the source
	// before it is marked inactive.
	RetirementGrace time.Duration
	// StaleRunAfter fails runs left in running state by a crashed process.
	// Zero disables the check.
	StaleRunAfter time.Duration
	// MaxConsecutiveFailures aborts the pass after this many store failures
	// in a row. Default: 5.
	MaxConsecutiveFailures int
}

// Coordinator runs scrape passes. Passes are sequential; the store rejects a
// second running pass across processes.
type Coordinator struct {
	store      Store
	extractor  extract.Extractor
	reconciler *reconcile.Reconciler
	deriver    *alert.Deriver
	enricher   Enricher
	cfg        Config
	now        func() time.Time
	log        *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDeriver enables alert derivation.
func WithDeriver(d *alert.Deriver) Option {
	return func(c *Coordinator) { c.deriver = d }
}

// WithEnricher enables snapshot enrichment (geocoding).
func WithEnricher(e Enricher) Option {
	return func(c *Coordinator) { c.enricher = e }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(st Store, ex extract.Extractor, cfg Config, opts ...Option) *Coordinator {
	if cfg.RetirementGrace <= 0 {
		cfg.RetirementGrace = 24 * time.Hour
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	c := &Coordinator{
		store:     st,
		extractor: ex,
		cfg:       cfg,
		now:       time.Now,
		log:       zap.L().With(zap.String("component", "pipeline")),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reconciler = reconcile.New(st, reconcile.WithClock(c.now))
	return c
}

type passState struct {
	batch  *reconcile.Batch
	counts model.RunCounts // coordinator-owned counters
}

func (s *passState) merged() model.RunCounts {
	c := s.batch.Counts()
	c.Found = s.counts.Found
	c.Skipped = s.counts.Skipped
	c.Duplicates = s.counts.Duplicates
	c.Retired = s.counts.Retired
	c.Alerts = s.counts.Alerts
	return c
}

// RunPass runs one scrape pass and returns the finalized run. The run always
// ends completed or failed, also when ctx is cancelled or the pass panics. A
// failed pass never retires listings. store.ErrRunInProgress is returned
// without a run when another pass holds the lock.
func (c *Coordinator) RunPass(ctx context.Context) (run *model.ScrapeRun, err error) {
	if c.cfg.StaleRunAfter > 0 {
		now := c.now().UTC()
		n, staleErr := c.store.FailStaleRuns(ctx, now.Add(-c.cfg.StaleRunAfter), now)
		if staleErr != nil {
			return nil, eris.Wrap(staleErr, "pipeline: fail stale runs")
		}
		if n > 0 {
			c.log.Warn("pipeline: failed abandoned runs", zap.Int64("count", n))
		}
	}

	run, err = c.store.StartRun(ctx, c.now().UTC())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}
	log := c.log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: pass started")

	st := &passState{batch: reconcile.NewBatch()}
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: panic during pass: %v", r)
		}
		if finErr := c.finalize(context.WithoutCancel(ctx), run, st.merged(), err); finErr != nil {
			log.Error("pipeline: finalize run", zap.Error(finErr))
			if err == nil {
				err = finErr
			}
		}
		metrics.ObservePass(run)
		log.Info("pipeline: pass finished",
			zap.String("status", string(run.Status)),
			zap.Duration("duration", run.Duration()),
			zap.Any("counts", run.Counts),
		)
	}()

	err = c.pass(ctx, st, log)
	return run, err
}

func (c *Coordinator) finalize(ctx context.Context, run *model.ScrapeRun, counts model.RunCounts, passErr error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := c.now().UTC()
	var err error
	if passErr == nil {
		err = run.Complete(counts, now)
	} else {
		err = run.Fail(counts, passErr.Error(), now)
	}
	if err != nil {
		return err
	}
	return c.store.FinishRun(ctx, run)
}

func (c *Coordinator) pass(ctx context.Context, st *passState, log *zap.Logger) error {
	seq, err := c.extractor.Extract(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: open source")
	}

	if c.deriver != nil {
		if err := c.deriver.Prepare(ctx); err != nil {
			log.Warn("pipeline: load saved searches", zap.Error(err))
		}
	}

	dedupe := extract.NewDeduper()
	consecutive := 0

	for raw, yerr := range seq {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: pass interrupted")
		}
		if yerr != nil {
			if errors.Is(yerr, extract.ErrFatal) || errors.Is(yerr, context.Canceled) || errors.Is(yerr, context.DeadlineExceeded) {
				return eris.Wrap(yerr, "pipeline: extraction aborted")
			}
			st.counts.Skipped++
			log.Warn("pipeline: extraction error", zap.Error(yerr))
			continue
		}

		snap, nerr := raw.Normalize(c.now())
		if nerr != nil {
			st.counts.Skipped++
			log.Warn("pipeline: invalid snapshot", zap.Error(nerr))
			continue
		}
		if !dedupe.First(snap.SourceURL) {
			st.counts.Duplicates++
			continue
		}
		st.counts.Found++

		c.enrich(ctx, &snap)

		ev, rerr := c.reconciler.Reconcile(ctx, snap)
		st.batch.Record(ev, rerr)
		if rerr != nil {
			consecutive++
			log.Warn("pipeline: reconcile failed", zap.String("source_url", snap.SourceURL), zap.Error(rerr))
			if consecutive >= c.cfg.MaxConsecutiveFailures {
				return eris.Wrapf(rerr, "pipeline: aborting after %d consecutive store failures", consecutive)
			}
			continue
		}
		consecutive = 0

		if c.deriver != nil && ev.Changed() {
			alerts, aerr := c.deriver.Derive(ctx, ev)
			if aerr != nil {
				log.Warn("pipeline: derive alerts", zap.String("listing_id", ev.Listing.ID), zap.Error(aerr))
			} else {
				st.counts.Alerts += len(alerts)
				metrics.AlertsCreated(alerts)
			}
		}
	}

	if st.counts.Found == 0 {
		return ErrNoData
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: pass interrupted")
	}

	now := c.now().UTC()
	retired, err := c.store.RetireMissing(ctx, st.batch.Observed(), now.Add(-c.cfg.RetirementGrace), now)
	if err != nil {
		return eris.Wrap(err, "pipeline: retire missing listings")
	}
	st.counts.Retired = int(retired)
	return nil
}

func (c *Coordinator) enrich(ctx context.Context, snap *model.Snapshot) {
	if c.enricher == nil || snap.Coordinates != nil {
		return
	}
	if c.enricher.Enrich(ctx, snap) {
		metrics.GeocodeResult("matched")
	} else {
		metrics.GeocodeResult("unmatched")
	}
}
