package model

import "time"

// AlertType identifies why an alert was raised.
type AlertType string

const (
	AlertNewListing    AlertType = "new_listing"
	AlertPriceDrop     AlertType = "price_drop"
	AlertPriceIncrease AlertType = "price_increase"
)

// Alert notifies one user about a listing event. Alerts are only mutated by
// marking them read.
type Alert struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	ListingID     string     `json:"listing_id"`
	SavedSearchID *string    `json:"saved_search_id,omitempty"`
	Type          AlertType  `json:"type"`
	OldPrice      *int64     `json:"old_price,omitempty"`
	NewPrice      *int64     `json:"new_price,omitempty"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
