// Package alert turns reconciliation events into per-user alerts.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/reconcile"
)

// Policy selects which users count as interested in a listing.
type Policy string

const (
	// PolicyFavorites alerts users who favourited the listing.
	PolicyFavorites Policy = "favorites"
	// PolicySavedSearches alerts owners of saved searches matching the listing.
	PolicySavedSearches Policy = "saved_searches"
	// PolicyAll alerts both groups, once per user.
	PolicyAll Policy = "all"
)

// ParsePolicy validates a configured policy name. Empty selects PolicyAll.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return PolicyAll, nil
	case PolicyFavorites, PolicySavedSearches, PolicyAll:
		return p, nil
	default:
		return "", eris.Errorf("alert: unknown interest policy %q", s)
	}
}

func (p Policy) favorites() bool { return p == PolicyFavorites || p == PolicyAll }
func (p Policy) searches() bool  { return p == PolicySavedSearches || p == PolicyAll }

// Classify maps an event to an alert type. It returns false for events that
// must not raise an alert.
func Classify(ev reconcile.Event) (model.AlertType, bool) {
	switch {
	case ev.IsNew:
		return model.AlertNewListing, true
	case ev.PriceChanged && ev.OldPrice != nil && ev.NewPrice != nil:
		if *ev.NewPrice < *ev.OldPrice {
			return model.AlertPriceDrop, true
		}
		if *ev.NewPrice > *ev.OldPrice {
			return model.AlertPriceIncrease, true
		}
	}
	return "", false
}

// Source resolves interested users.
type Source interface {
	FavoritedBy(ctx context.Context, listingID string) ([]string, error)
	AlertingSearches(ctx context.Context) ([]model.SavedSearch, error)
}

// Sink persists alerts.
type Sink interface {
	InsertAlerts(ctx context.Context, alerts []model.Alert) error
}

// Deriver creates alerts for interested users. Saved searches are loaded
// once per pass by Prepare.
type Deriver struct {
	src    Source
	sink   Sink
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	searches []model.SavedSearch
	loaded   bool
}

// NewDeriver creates a Deriver.
func NewDeriver(src Source, sink Sink, policy Policy) *Deriver {
	if policy == "" {
		policy = PolicyAll
	}
	return &Deriver{src: src, sink: sink, policy: policy, now: time.Now}
}

// Prepare loads the alerting saved searches for the coming pass.
func (d *Deriver) Prepare(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	d.searches = nil
	if !d.policy.searches() {
		d.loaded = true
		return nil
	}
	searches, err := d.src.AlertingSearches(ctx)
	if err != nil {
		return eris.Wrap(err, "alert: load saved searches")
	}
	d.searches = searches
	d.loaded = true
	return nil
}

func (d *Deriver) savedSearches(ctx context.Context) ([]model.SavedSearch, error) {
	d.mu.Lock()
	loaded := d.loaded
	searches := d.searches
	d.mu.Unlock()
	if loaded {
		return searches, nil
	}
	if err := d.Prepare(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searches, nil
}

// Derive creates and persists one alert per interested user for ev. Events
// that are neither new nor a price change produce nothing.
func (d *Deriver) Derive(ctx context.Context, ev reconcile.Event) ([]model.Alert, error) {
	typ, ok := Classify(ev)
	if !ok {
		return nil, nil
	}

	// user id -> saved search that matched, nil for favourites.
	interested := make(map[string]*string)
	var order []string
	add := func(userID string, searchID *string) {
		if prev, seen := interested[userID]; seen {
			if prev == nil && searchID != nil {
				interested[userID] = searchID
			}
			return
		}
		interested[userID] = searchID
		order = append(order, userID)
	}

	if d.policy.searches() {
		searches, err := d.savedSearches(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range searches {
			if s.Matches(ev.Listing) {
				id := s.ID
				add(s.UserID, &id)
			}
		}
	}
	// Nobody can have favourited a listing that did not exist before.
	if d.policy.favorites() && !ev.IsNew {
		users, err := d.src.FavoritedBy(ctx, ev.Listing.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "alert: favourites of %s", ev.Listing.ID)
		}
		for _, u := range users {
			add(u, nil)
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	now := d.now().UTC()
	alerts := make([]model.Alert, 0, len(order))
	for _, userID := range order {
		a := model.Alert{
			ID:            uuid.New().String(),
			UserID:        userID,
			ListingID:     ev.Listing.ID,
			SavedSearchID: interested[userID],
			Type:          typ,
			CreatedAt:     now,
		}
		if typ == model.AlertNewListing {
			a.NewPrice = ev.Listing.Price
		} else {
			a.OldPrice = ev.OldPrice
			a.NewPrice = ev.NewPrice
		}
		alerts = append(alerts, a)
	}

	if err := d.sink.InsertAlerts(ctx, alerts); err != nil {
		return nil, eris.Wrapf(err, "alert: insert %d alerts", len(alerts))
	}
	zap.L().Debug("alert: derived",
		zap.String("listing_id", ev.Listing.ID),
		zap.String("type", string(typ)),
		zap.Int("alerts", len(alerts)),
	)
	return alerts, nil
}
