package model

import (
	"strings"
	"time"
)

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Listing is the persisted state of one source URL.
type Listing struct {
	ID          string       `json:"id"`
	SourceURL   string       `json:"source_url"`
	Price       *int64       `json:"price,omitempty"`
	Street      string       `json:"street"`
	Town        string       `json:"town,omitempty"`
	Province    string       `json:"province,omitempty"`
	Beds        int          `json:"beds"`
	Baths       float64      `json:"baths"`
	FloorArea   *int         `json:"floor_area,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Images      []string     `json:"images"`
	ListedAt    *time.Time   `json:"listed_at,omitempty"`
	FirstSeenAt time.Time    `json:"first_seen_at"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Address formats the street, town and province on one line.
func (l Listing) Address() string {
	return joinAddress(l.Street, l.Town, l.Province)
}

// PricePoint is one append-only entry of a listing's price history.
type PricePoint struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	Price      int64     `json:"price"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ListingDetail is a listing with its price history, annotated for one user.
type ListingDetail struct {
	Listing
	PriceHistory []PricePoint `json:"price_history"`
	Favorite     bool         `json:"favorite"`
}

// Snapshot is one validated observation of a listing produced by an extractor.
// Optional fields are nil when the source did not provide them.
type Snapshot struct {
	SourceURL   string       `json:"source_url"`
	Price       *int64       `json:"price,omitempty"`
	Street      string       `json:"street"`
	Town        string       `json:"town,omitempty"`
	Province    string       `json:"province,omitempty"`
	Beds        *int         `json:"beds,omitempty"`
	Baths       *float64     `json:"baths,omitempty"`
	FloorArea   *int         `json:"floor_area,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Images      []string     `json:"images,omitempty"`
	ListedAt    *time.Time   `json:"listed_at,omitempty"`
	ObservedAt  time.Time    `json:"observed_at"`
}

// Address formats the street, town and province on one line.
func (s Snapshot) Address() string {
	return joinAddress(s.Street, s.Town, s.Province)
}

func joinAddress(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
