package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// User is an end user of the feed.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	AlertsEnabled bool      `json:"alerts_enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// SavedSearch is a stored feed filter that can raise alerts for its owner.
type SavedSearch struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Name          string     `json:"name"`
	Filter        FeedFilter `json:"filter"`
	AlertsEnabled bool       `json:"alerts_enabled"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Matches reports whether the listing satisfies the saved search filter.
func (s SavedSearch) Matches(l Listing) bool {
	return s.Filter.Matches(l)
}

// SwipeDirection is the user's reaction to a listing in the feed.
type SwipeDirection string

const (
	SwipeLike    SwipeDirection = "like"
	SwipeDislike SwipeDirection = "dislike"
)

// ErrInvalidSwipe is returned for an unknown swipe direction.
var ErrInvalidSwipe = eris.New("invalid swipe direction")

// Valid reports whether d is a known direction.
func (d SwipeDirection) Valid() bool {
	return d == SwipeLike || d == SwipeDislike
}

// Swipe records that a user acted on a listing. A listing with a swipe is
// excluded from that user's feed.
type Swipe struct {
	UserID    string         `json:"user_id"`
	ListingID string         `json:"listing_id"`
	Direction SwipeDirection `json:"direction"`
	CreatedAt time.Time      `json:"created_at"`
}
