package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homeswipe/internal/alert"
	"github.com/sells-group/homeswipe/internal/extract"
	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type item struct {
	raw extract.RawSnapshot
	err error
}

// staticExtractor yields a fixed list of snapshots and errors.
type staticExtractor struct {
	items   []item
	openErr error
	// onYield runs before item i is yielded.
	onYield func(i int)
}

func (s *staticExtractor) Extract(context.Context) (iter.Seq2[extract.RawSnapshot, error], error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return func(yield func(extract.RawSnapshot, error) bool) {
		for i, it := range s.items {
			if s.onYield != nil {
				s.onYield(i)
			}
			if !yield(it.raw, it.err) {
				return
			}
		}
	}, nil
}

func raw(n int, price string) item {
	return item{raw: extract.RawSnapshot{
		URL:      fmt.Sprintf("https://portal.example/inmueble/%d", n),
		Street:   fmt.Sprintf("Calle Mayor %d", n),
		Town:     "Jávea",
		Province: "Alicante",
		Price:    extract.Loose(price),
		Beds:     "3",
	}}
}

func urlOf(n int) string { return fmt.Sprintf("https://portal.example/inmueble/%d", n) }

func extractorOf(items ...item) *staticExtractor { return &staticExtractor{items: items} }

type harness struct {
	st  *store.SQLiteStore
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "homeswipe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return &harness{st: st, now: t0}
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) coordinator(s Store, ex extract.Extractor, opts ...Option) *Coordinator {
	opts = append([]Option{WithClock(h.clock)}, opts...)
	return NewCoordinator(s, ex, Config{RetirementGrace: 24 * time.Hour, MaxConsecutiveFailures: 2}, opts...)
}

func (h *harness) listing(t *testing.T, n int) *model.Listing {
	t.Helper()
	l, err := h.st.GetListingByURL(context.Background(), urlOf(n))
	require.NoError(t, err)
	return l
}

func (h *harness) storedRun(t *testing.T, id string) *model.ScrapeRun {
	t.Helper()
	r, err := h.st.GetRun(context.Background(), id)
	require.NoError(t, err)
	return r
}

func TestRunPass_CompletesAndCounts(t *testing.T) {
	h := newHarness(t)
	ex := extractorOf(
		raw(1, "450.000 €"),
		raw(2, "Consultar"),
		raw(1, "440.000 €"),
		item{raw: extract.RawSnapshot{URL: "https://portal.example/inmueble/9"}},
		item{err: errors.New("page 3: timeout")},
	)

	run, err := h.coordinator(h.st, ex).RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Counts.Found)
	assert.Equal(t, 2, run.Counts.New)
	assert.Equal(t, 1, run.Counts.Duplicates)
	assert.Equal(t, 2, run.Counts.Skipped)
	assert.Zero(t, run.Counts.Failed)

	stored := h.storedRun(t, run.ID)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	assert.Equal(t, run.Counts, stored.Counts)

	// first occurrence wins
	assert.Equal(t, int64(450000), *h.listing(t, 1).Price)
	assert.Nil(t, h.listing(t, 2).Price)
}

func TestRunPass_PriceDropAlertsFavoriter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deriver := alert.NewDeriver(h.st, h.st, alert.PolicyAll)

	_, err := h.coordinator(h.st, extractorOf(raw(1, "500000")), WithDeriver(deriver)).RunPass(ctx)
	require.NoError(t, err)

	u := &model.User{Email: "ana@example.com", AlertsEnabled: true, CreatedAt: t0}
	require.NoError(t, h.st.CreateUser(ctx, u))
	l := h.listing(t, 1)
	require.NoError(t, h.st.RecordSwipe(ctx, model.Swipe{UserID: u.ID, ListingID: l.ID, Direction: model.SwipeLike, CreatedAt: t0}))

	h.now = t0.Add(time.Hour)
	run, err := h.coordinator(h.st, extractorOf(raw(1, "480000")), WithDeriver(deriver)).RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Counts.PriceChanged)
	assert.Equal(t, 1, run.Counts.Alerts)

	alerts, err := h.st.ListAlerts(ctx, u.ID, true, model.Page{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertPriceDrop, alerts[0].Type)
	assert.Equal(t, int64(500000), *alerts[0].OldPrice)
	assert.Equal(t, int64(480000), *alerts[0].NewPrice)

	// unchanged price on the next pass: no new alert
	h.now = t0.Add(2 * time.Hour)
	run, err = h.coordinator(h.st, extractorOf(raw(1, "480000")), WithDeriver(deriver)).RunPass(ctx)
	require.NoError(t, err)
	assert.Zero(t, run.Counts.Alerts)
}

func TestRunPass_SameBatchTwiceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deriver := alert.NewDeriver(h.st, h.st, alert.PolicyAll)
	u := &model.User{Email: "ana@example.com", AlertsEnabled: true, CreatedAt: t0}
	require.NoError(t, h.st.CreateUser(ctx, u))
	batch := func() *staticExtractor { return extractorOf(raw(1, "500000"), raw(2, "320.000 €")) }

	first, err := h.coordinator(h.st, batch(), WithDeriver(deriver)).RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Counts.New)
	l := h.listing(t, 1)
	require.NoError(t, h.st.RecordSwipe(ctx, model.Swipe{UserID: u.ID, ListingID: l.ID, Direction: model.SwipeLike, CreatedAt: t0}))

	alertsBefore, err := h.st.ListAlerts(ctx, u.ID, false, model.Page{})
	require.NoError(t, err)
	historyBefore := map[int]int{}
	for _, n := range []int{1, 2} {
		points, err := h.st.PriceHistory(ctx, h.listing(t, n).ID)
		require.NoError(t, err)
		historyBefore[n] = len(points)
	}

	h.now = t0.Add(time.Hour)
	second, err := h.coordinator(h.st, batch(), WithDeriver(deriver)).RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, second.Status)
	assert.Equal(t, 2, second.Counts.Found)
	assert.Zero(t, second.Counts.New)
	assert.Zero(t, second.Counts.PriceChanged)
	assert.Zero(t, second.Counts.Alerts)

	alertsAfter, err := h.st.ListAlerts(ctx, u.ID, false, model.Page{})
	require.NoError(t, err)
	assert.Len(t, alertsAfter, len(alertsBefore))
	for _, n := range []int{1, 2} {
		points, err := h.st.PriceHistory(ctx, h.listing(t, n).ID)
		require.NoError(t, err)
		assert.Len(t, points, historyBefore[n], "listing %d", n)
	}
}

func TestRunPass_RetirementRespectsGraceWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coordinator(h.st, extractorOf(raw(1, "100000"), raw(2, "200000"))).RunPass(ctx)
	require.NoError(t, err)

	// listing 2 missing, but only for an hour
	h.now = t0.Add(time.Hour)
	run, err := h.coordinator(h.st, extractorOf(raw(1, "100000"))).RunPass(ctx)
	require.NoError(t, err)
	assert.Zero(t, run.Counts.Retired)
	assert.True(t, h.listing(t, 2).Active)

	h.now = t0.Add(25 * time.Hour)
	run, err = h.coordinator(h.st, extractorOf(raw(1, "100000"))).RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Counts.Retired)
	assert.False(t, h.listing(t, 2).Active)
	assert.True(t, h.listing(t, 1).Active)

	// reappearance reactivates
	h.now = t0.Add(26 * time.Hour)
	run, err = h.coordinator(h.st, extractorOf(raw(1, "100000"), raw(2, "200000"))).RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Counts.Updated)
	assert.True(t, h.listing(t, 2).Active)
}

// outageStore fails every upsert after the first allowed ones.
type outageStore struct {
	*store.SQLiteStore
	allowed int32
	calls   atomic.Int32
}

func (o *outageStore) UpsertListing(ctx context.Context, snap model.Snapshot, now time.Time) (*store.UpsertResult, error) {
	if o.calls.Add(1) > o.allowed {
		return nil, errors.New("connection refused")
	}
	return o.SQLiteStore.UpsertListing(ctx, snap, now)
}

func TestRunPass_MidBatchOutageFailsWithoutRetirement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coordinator(h.st, extractorOf(raw(1, "1"), raw(2, "2"), raw(3, "3"), raw(4, "4"))).RunPass(ctx)
	require.NoError(t, err)

	h.now = t0.Add(48 * time.Hour)
	flaky := &outageStore{SQLiteStore: h.st, allowed: 1}
	run, err := h.coordinator(flaky, extractorOf(raw(1, "1"), raw(2, "2"), raw(3, "3"), raw(4, "4"))).RunPass(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consecutive store failures")

	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, 2, run.Counts.Failed)
	assert.Zero(t, run.Counts.Retired)
	assert.Equal(t, int32(3), flaky.calls.Load())

	stored := h.storedRun(t, run.ID)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "connection refused")

	for n := 1; n <= 4; n++ {
		assert.True(t, h.listing(t, n).Active, "listing %d", n)
	}
}

func TestRunPass_EmptySourceFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coordinator(h.st, extractorOf(raw(1, "1"))).RunPass(ctx)
	require.NoError(t, err)

	h.now = t0.Add(72 * time.Hour)
	run, err := h.coordinator(h.st, extractorOf()).RunPass(ctx)
	require.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.True(t, h.listing(t, 1).Active)
}

func TestRunPass_FatalExtractorErrorFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coordinator(h.st, extractorOf(raw(1, "1"), raw(2, "2"))).RunPass(ctx)
	require.NoError(t, err)

	h.now = t0.Add(72 * time.Hour)
	ex := extractorOf(raw(1, "1"), item{err: extract.ErrFatal})
	run, err := h.coordinator(h.st, ex).RunPass(ctx)
	require.ErrorIs(t, err, extract.ErrFatal)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.True(t, h.listing(t, 2).Active)
}

func TestRunPass_SourceOpenErrorFails(t *testing.T) {
	h := newHarness(t)

	run, err := h.coordinator(h.st, &staticExtractor{openErr: errors.New("no such file")}).RunPass(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, h.storedRun(t, run.ID).Status)
}

func TestRunPass_RejectsConcurrentPass(t *testing.T) {
	h := newHarness(t)
	_, err := h.st.StartRun(context.Background(), t0)
	require.NoError(t, err)

	run, err := h.coordinator(h.st, extractorOf(raw(1, "1"))).RunPass(context.Background())
	assert.ErrorIs(t, err, store.ErrRunInProgress)
	assert.Nil(t, run)
}

func TestRunPass_FailsStaleRunsFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stale, err := h.st.StartRun(ctx, t0.Add(-10*time.Hour))
	require.NoError(t, err)

	c := NewCoordinator(h.st, extractorOf(raw(1, "1")), Config{StaleRunAfter: 6 * time.Hour}, WithClock(h.clock))
	run, err := c.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, model.RunStatusFailed, h.storedRun(t, stale.ID).Status)
}

func TestRunPass_CancelledContextFinalizesRun(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ex := extractorOf(raw(1, "1"), raw(2, "2"), raw(3, "3"))
	ex.onYield = func(i int) {
		if i == 1 {
			cancel()
		}
	}

	run, err := h.coordinator(h.st, ex).RunPass(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunStatusFailed, h.storedRun(t, run.ID).Status)
}

type panicEnricher struct{}

func (panicEnricher) Enrich(context.Context, *model.Snapshot) bool { panic("geocoder exploded") }

func TestRunPass_PanicFinalizesRun(t *testing.T) {
	h := newHarness(t)

	run, err := h.coordinator(h.st, extractorOf(raw(1, "1")), WithEnricher(panicEnricher{})).RunPass(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocoder exploded")

	stored := h.storedRun(t, run.ID)
	assert.Equal(t, model.RunStatusFailed, stored.Status)

	// the lock is released
	_, err = h.coordinator(h.st, extractorOf(raw(1, "1"))).RunPass(context.Background())
	assert.NoError(t, err)
}

type fixedEnricher struct{ calls int }

func (f *fixedEnricher) Enrich(_ context.Context, snap *model.Snapshot) bool {
	f.calls++
	snap.Coordinates = &model.Coordinates{Lat: 38.79, Lng: 0.17}
	return true
}

func TestRunPass_EnrichesMissingCoordinates(t *testing.T) {
	h := newHarness(t)
	withCoords := raw(2, "2")
	withCoords.raw.Lat, withCoords.raw.Lng = "38.5", "0.1"

	enr := &fixedEnricher{}
	_, err := h.coordinator(h.st, extractorOf(raw(1, "1"), withCoords), WithEnricher(enr)).RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, enr.calls)
	assert.Equal(t, &model.Coordinates{Lat: 38.79, Lng: 0.17}, h.listing(t, 1).Coordinates)
	assert.InDelta(t, 38.5, h.listing(t, 2).Coordinates.Lat, 1e-9)
}
