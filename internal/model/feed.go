package model

import (
	"strings"

	"github.com/twpayne/go-geom"
)

// BoundingBox restricts listings to an area. Listings without coordinates
// never match a bounding box.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Bounds converts the box to an XY (lng, lat) geom.Bounds.
func (b BoundingBox) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinates) bool {
	return b.Bounds().OverlapsPoint(geom.XY, geom.Coord{c.Lng, c.Lat})
}

// FeedFilter holds the optional criteria of a feed query or saved search.
type FeedFilter struct {
	MinPrice *int64       `json:"min_price,omitempty"`
	MaxPrice *int64       `json:"max_price,omitempty"`
	MinBeds  *int         `json:"min_beds,omitempty"`
	MinBaths *float64     `json:"min_baths,omitempty"`
	Province string       `json:"province,omitempty"`
	Area     *BoundingBox `json:"area,omitempty"`
}

// Matches evaluates the filter against a listing in memory. A price bound
// never matches a listing whose price is unknown.
func (f FeedFilter) Matches(l Listing) bool {
	if f.MinPrice != nil && (l.Price == nil || *l.Price < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && (l.Price == nil || *l.Price > *f.MaxPrice) {
		return false
	}
	if f.MinBeds != nil && l.Beds < *f.MinBeds {
		return false
	}
	if f.MinBaths != nil && l.Baths < *f.MinBaths {
		return false
	}
	if f.Province != "" && !strings.EqualFold(f.Province, l.Province) {
		return false
	}
	if f.Area != nil && (l.Coordinates == nil || !f.Area.Contains(*l.Coordinates)) {
		return false
	}
	return true
}

// Page bounds a paginated query.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
