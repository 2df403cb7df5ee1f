// Package store persists listings, their price history, scrape runs, alerts
// and per-user feed state.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = eris.New("not found")
	// ErrRunInProgress is returned by StartRun while another pass is running.
	ErrRunInProgress = eris.New("a scrape run is already in progress")
	// ErrRunFinalized is returned by FinishRun for a run that already reached
	// a terminal state.
	ErrRunFinalized = model.ErrRunFinalized
)

// UpsertResult describes what an upsert changed.
type UpsertResult struct {
	Listing      model.Listing
	IsNew        bool
	PriceChanged bool
	OldPrice     *int64
	NewPrice     *int64
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	StartedAfter *time.Time      `json:"started_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// ListingWriter applies snapshots and retires vanished listings.
type ListingWriter interface {
	// UpsertListing inserts or updates the listing keyed by the snapshot's
	// source URL and appends a price point when the price changed, all in
	// one transaction.
	UpsertListing(ctx context.Context, snap model.Snapshot, now time.Time) (*UpsertResult, error)
	// RetireMissing marks inactive every active listing whose URL is not in
	// observed and whose last_seen_at is before cutoff.
	RetireMissing(ctx context.Context, observed []string, cutoff, now time.Time) (int64, error)
}

// ListingReader reads listings and their history.
type ListingReader interface {
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	GetListingByURL(ctx context.Context, sourceURL string) (*model.Listing, error)
	PriceHistory(ctx context.Context, listingID string) ([]model.PricePoint, error)
}

// RunStore manages the scrape run lifecycle.
type RunStore interface {
	StartRun(ctx context.Context, now time.Time) (*model.ScrapeRun, error)
	FinishRun(ctx context.Context, run *model.ScrapeRun) error
	FailStaleRuns(ctx context.Context, startedBefore, now time.Time) (int64, error)
	GetRun(ctx context.Context, id string) (*model.ScrapeRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error)
}

// AlertStore resolves interested users and persists alerts.
type AlertStore interface {
	// FavoritedBy returns the ids of users with alerts enabled who
	// favourited the listing.
	FavoritedBy(ctx context.Context, listingID string) ([]string, error)
	// AlertingSearches returns saved searches with alerts enabled whose
	// owner has alerts enabled.
	AlertingSearches(ctx context.Context) ([]model.SavedSearch, error)
	InsertAlerts(ctx context.Context, alerts []model.Alert) error
	ListAlerts(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]model.Alert, error)
	MarkAlertRead(ctx context.Context, userID, alertID string, now time.Time) error
}

// FeedStore serves the per-user feed.
type FeedStore interface {
	ListingReader
	ActiveFeed(ctx context.Context, userID string, filter model.FeedFilter, page model.Page) ([]model.Listing, error)
	IsFavorite(ctx context.Context, userID, listingID string) (bool, error)
	RecordSwipe(ctx context.Context, swipe model.Swipe) error
}

// UserStore creates users and saved searches.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	CreateSavedSearch(ctx context.Context, s *model.SavedSearch) error
}

// GeocodeCache stores resolved coordinates by normalized address key.
// A miss returns nil coordinates and a nil error.
type GeocodeCache interface {
	GetCachedGeocode(ctx context.Context, key string) (*model.Coordinates, error)
	SetCachedGeocode(ctx context.Context, key string, c model.Coordinates, now time.Time) error
}

// Store defines the persistence interface for listings, runs and feeds.
type Store interface {
	ListingWriter
	RunStore
	AlertStore
	FeedStore
	UserStore
	GeocodeCache

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
