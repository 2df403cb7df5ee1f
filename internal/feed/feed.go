// Package feed serves the swipe feed: active listings a user has not yet
// swiped, listing details and swipe recording.
package feed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/model"
	"github.com/sells-group/homeswipe/internal/store"
)

// ErrInvalidRequest is returned for malformed feed requests.
var ErrInvalidRequest = eris.New("feed: invalid request")

// Service answers feed queries for end users.
type Service struct {
	store store.FeedStore
	now   func() time.Time
}

// NewService creates a Service.
func NewService(st store.FeedStore) *Service {
	return &Service{store: st, now: time.Now}
}

// Feed returns active listings the user has not swiped, newest listed first.
func (s *Service) Feed(ctx context.Context, userID string, filter model.FeedFilter, page model.Page) ([]model.Listing, error) {
	if userID == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "user id is required")
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	listings, err := s.store.ActiveFeed(ctx, userID, filter, page.Normalize())
	if err != nil {
		return nil, eris.Wrap(err, "feed: query")
	}
	return listings, nil
}

// Listing returns one listing with its price history, annotated with whether
// the user has favourited it. Inactive listings are still returned so that
// favourites and alerts keep resolving.
func (s *Service) Listing(ctx context.Context, userID, id string) (*model.ListingDetail, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "feed: get listing")
	}
	history, err := s.store.PriceHistory(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "feed: price history")
	}
	detail := &model.ListingDetail{Listing: *l, PriceHistory: history}
	if detail.PriceHistory == nil {
		detail.PriceHistory = []model.PricePoint{}
	}
	if userID != "" {
		fav, err := s.store.IsFavorite(ctx, userID, id)
		if err != nil {
			return nil, eris.Wrap(err, "feed: favourite lookup")
		}
		detail.Favorite = fav
	}
	return detail, nil
}

// Swipe records a like or dislike. Liking also favourites the listing;
// disliking removes the favourite.
func (s *Service) Swipe(ctx context.Context, sw model.Swipe) error {
	if sw.UserID == "" || sw.ListingID == "" {
		return eris.Wrap(ErrInvalidRequest, "user id and listing id are required")
	}
	if !sw.Direction.Valid() {
		return eris.Wrapf(model.ErrInvalidSwipe, "%q", sw.Direction)
	}
	if _, err := s.store.GetListing(ctx, sw.ListingID); err != nil {
		return eris.Wrap(err, "feed: swipe")
	}
	if sw.CreatedAt.IsZero() {
		sw.CreatedAt = s.now().UTC()
	}
	return eris.Wrap(s.store.RecordSwipe(ctx, sw), "feed: record swipe")
}

func validateFilter(f model.FeedFilter) error {
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return eris.Wrap(ErrInvalidRequest, "min_price is greater than max_price")
	}
	if a := f.Area; a != nil && (a.MinLat > a.MaxLat || a.MinLng > a.MaxLng) {
		return eris.Wrap(ErrInvalidRequest, "area minimum exceeds maximum")
	}
	return nil
}
