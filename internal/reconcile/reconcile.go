// Package reconcile applies extracted snapshots to the listing store and
// reports what changed.
package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

// Event is the outcome of reconciling one snapshot.
type Event struct {
	Listing      model.Listing
	SourceURL    string
	IsNew        bool
	PriceChanged bool
	OldPrice     *int64
	NewPrice     *int64
}

// Changed reports whether the event can raise an alert.
func (e Event) Changed() bool {
	return e.IsNew || e.PriceChanged
}

// Reconciler upserts snapshots one at a time. Calls for the same source URL
// are serialized.
type Reconciler struct {
	store store.ListingWriter
	locks *keyLock
	now   func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler backed by st.
func New(st store.ListingWriter, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: st,
		locks: newKeyLock(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile applies one snapshot. A returned error means the snapshot was
// not persisted; the caller counts it as failed and must not treat the
// listing as observed.
func (r *Reconciler) Reconcile(ctx context.Context, snap model.Snapshot) (Event, error) {
	if snap.SourceURL == "" {
		return Event{}, eris.New("reconcile: snapshot has no source url")
	}
	if err := ctx.Err(); err != nil {
		return Event{}, eris.Wrap(err, "reconcile: context")
	}

	unlock := r.locks.Lock(snap.SourceURL)
	defer unlock()

	res, err := r.store.UpsertListing(ctx, snap, r.now().UTC())
	if err != nil {
		return Event{}, eris.Wrapf(err, "reconcile: upsert %s", snap.SourceURL)
	}

	ev := Event{
		Listing:      res.Listing,
		SourceURL:    snap.SourceURL,
		IsNew:        res.IsNew,
		PriceChanged: res.PriceChanged,
		OldPrice:     res.OldPrice,
		NewPrice:     res.NewPrice,
	}
	if ev.PriceChanged {
		zap.L().Debug("reconcile: price changed",
			zap.String("url", snap.SourceURL),
			zap.Int64("old", *ev.OldPrice),
			zap.Int64("new", *ev.NewPrice),
		)
	}
	return ev, nil
}
