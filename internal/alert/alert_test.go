package alert

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/reconcile"
	"github.com/sells-group/homeswipe/internal/store"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FavoritedBy(ctx context.Context, listingID string) ([]string, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSource) AlertingSearches(ctx context.Context) ([]model.SavedSearch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SavedSearch), args.Error(1)
}

type memSink struct {
	alerts []model.Alert
	err    error
}

func (s *memSink) InsertAlerts(_ context.Context, alerts []model.Alert) error {
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, alerts...)
	return nil
}

func listing(price int64) model.Listing {
	return model.Listing{ID: "l-1", SourceURL: "https://e/1", Price: &price, Province: "Alicante", Beds: 3}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAll, p)

	p, err = ParsePolicy("favorites")
	require.NoError(t, err)
	assert.Equal(t, PolicyFavorites, p)

	_, err = ParsePolicy("everyone")
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ev   reconcile.Event
		want model.AlertType
		ok   bool
	}{
		{"new", reconcile.Event{IsNew: true}, model.AlertNewListing, true},
		{"drop", reconcile.Event{PriceChanged: true, OldPrice: model.Int64(500000), NewPrice: model.Int64(480000)}, model.AlertPriceDrop, true},
		{"increase", reconcile.Event{PriceChanged: true, OldPrice: model.Int64(480000), NewPrice: model.Int64(500000)}, model.AlertPriceIncrease, true},
		{"unchanged", reconcile.Event{}, "", false},
		{"missing old price", reconcile.Event{PriceChanged: true, NewPrice: model.Int64(1)}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.ev)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerive_UnchangedProducesNothing(t *testing.T) {
	src := &mockSource{}
	sink := &memSink{}
	d := NewDeriver(src, sink, PolicyAll)

	alerts, err := d.Derive(context.Background(), reconcile.Event{Listing: listing(1)})
	require.NoError(t, err)
	assert.Empty(t, alerts)
	src.AssertNotCalled(t, "AlertingSearches", mock.Anything)
	src.AssertNotCalled(t, "FavoritedBy", mock.Anything, mock.Anything)
}

func TestDerive_NewListingMatchesSavedSearches(t *testing.T) {
	src := &mockSource{}
	src.On("AlertingSearches", mock.Anything).Return([]model.SavedSearch{
		{ID: "s-1", UserID: "u-1", Filter: model.FeedFilter{MaxPrice: model.Int64(600000)}},
		{ID: "s-2", UserID: "u-2", Filter: model.FeedFilter{Province: "Valencia"}},
		{ID: "s-3", UserID: "u-1", Filter: model.FeedFilter{MinBeds: model.Int(2)}},
	}, nil).Once()
	sink := &memSink{}
	d := NewDeriver(src, sink, PolicyAll)
	d.now = func() time.Time { return t0 }

	require.NoError(t, d.Prepare(context.Background()))
	alerts, err := d.Derive(context.Background(), reconcile.Event{Listing: listing(500000), IsNew: true})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, "u-1", a.UserID)
	assert.Equal(t, "s-1", *a.SavedSearchID)
	assert.Equal(t, model.AlertNewListing, a.Type)
	assert.Nil(t, a.OldPrice)
	assert.Equal(t, int64(500000), *a.NewPrice)
	assert.True(t, a.CreatedAt.Equal(t0))
	assert.Equal(t, alerts, sink.alerts)

	// A second event reuses the prepared searches.
	_, err = d.Derive(context.Background(), reconcile.Event{Listing: listing(400000), IsNew: true})
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "AlertingSearches", 1)
	src.AssertNotCalled(t, "FavoritedBy", mock.Anything, mock.Anything)
}

func TestDerive_PriceDropMergesFavoritesAndSearches(t *testing.T) {
	src := &mockSource{}
	src.On("AlertingSearches", mock.Anything).Return([]model.SavedSearch{
		{ID: "s-1", UserID: "u-2", Filter: model.FeedFilter{Province: "alicante"}},
	}, nil)
	src.On("FavoritedBy", mock.Anything, "l-1").Return([]string{"u-1", "u-2"}, nil)
	sink := &memSink{}
	d := NewDeriver(src, sink, PolicyAll)

	ev := reconcile.Event{
		Listing:      listing(480000),
		PriceChanged: true,
		OldPrice:     model.Int64(500000),
		NewPrice:     model.Int64(480000),
	}
	alerts, err := d.Derive(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	byUser := map[string]model.Alert{}
	for _, a := range alerts {
		byUser[a.UserID] = a
		assert.Equal(t, model.AlertPriceDrop, a.Type)
		assert.Equal(t, int64(500000), *a.OldPrice)
		assert.Equal(t, int64(480000), *a.NewPrice)
	}
	assert.Nil(t, byUser["u-1"].SavedSearchID)
	require.NotNil(t, byUser["u-2"].SavedSearchID)
	assert.Equal(t, "s-1", *byUser["u-2"].SavedSearchID)
}

func TestDerive_FavoritesPolicySkipsSearches(t *testing.T) {
	src := &mockSource{}
	src.On("FavoritedBy", mock.Anything, "l-1").Return([]string{"u-1"}, nil)
	d := NewDeriver(src, &memSink{}, PolicyFavorites)

	ev := reconcile.Event{Listing: listing(520000), PriceChanged: true, OldPrice: model.Int64(500000), NewPrice: model.Int64(520000)}
	alerts, err := d.Derive(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertPriceIncrease, alerts[0].Type)
	src.AssertNotCalled(t, "AlertingSearches", mock.Anything)

	// New listings have no favourites yet, so this policy never alerts on them.
	alerts, err = d.Derive(context.Background(), reconcile.Event{Listing: listing(1), IsNew: true})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestDerive_Errors(t *testing.T) {
	src := &mockSource{}
	src.On("AlertingSearches", mock.Anything).Return(nil, errors.New("db down"))
	d := NewDeriver(src, &memSink{}, PolicySavedSearches)

	_, err := d.Derive(context.Background(), reconcile.Event{Listing: listing(1), IsNew: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load saved searches")

	src2 := &mockSource{}
	src2.On("FavoritedBy", mock.Anything, "l-1").Return([]string{"u-1"}, nil)
	d2 := NewDeriver(src2, &memSink{err: errors.New("insert failed")}, PolicyFavorites)
	ev := reconcile.Event{Listing: listing(1), PriceChanged: true, OldPrice: model.Int64(2), NewPrice: model.Int64(1)}
	_, err = d2.Derive(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert 1 alerts")
}

// Price moves 500000 -> 480000 on a favourited listing: one price_drop alert.
func TestDerive_EndToEndWithSQLite(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	user := &model.User{Email: "ana@example.com", AlertsEnabled: true}
	require.NoError(t, st.CreateUser(ctx, user))

	r := reconcile.New(st, reconcile.WithClock(func() time.Time { return t0 }))
	d := NewDeriver(st, st, PolicyAll)
	snap := model.Snapshot{SourceURL: "https://e/villa", Street: "Calle Luna 3", Price: model.Int64(500000)}

	ev, err := r.Reconcile(ctx, snap)
	require.NoError(t, err)
	alerts, err := d.Derive(ctx, ev)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	require.NoError(t, st.RecordSwipe(ctx, model.Swipe{UserID: user.ID, ListingID: ev.Listing.ID, Direction: model.SwipeLike, CreatedAt: t0}))

	snap.Price = model.Int64(480000)
	ev, err = r.Reconcile(ctx, snap)
	require.NoError(t, err)
	_, err = d.Derive(ctx, ev)
	require.NoError(t, err)

	stored, err := NewService(st).List(ctx, user.ID, true, model.Page{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.AlertPriceDrop, stored[0].Type)
	assert.Equal(t, int64(500000), *stored[0].OldPrice)
	assert.Equal(t, int64(480000), *stored[0].NewPrice)

	// Unchanged re-observation raises nothing.
	ev, err = r.Reconcile(ctx, snap)
	require.NoError(t, err)
	alerts, err = d.Derive(ctx, ev)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
