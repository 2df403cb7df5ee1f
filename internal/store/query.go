package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/model"
)

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// placeholder renders the nth (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }

const listingColumns = `id, source_url, price, street, town, province, beds, baths, floor_area,
	lat, lng, images, listed_at, first_seen_at, last_seen_at, active, created_at, updated_at`

// listingColumnsAs prefixes every listing column with a table alias.
func listingColumnsAs(alias string) string {
	cols := strings.Split(listingColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func scanListing(row scannable) (*model.Listing, error) {
	var (
		l        model.Listing
		lat, lng *float64
		images   []byte
	)
	err := row.Scan(
		&l.ID, &l.SourceURL, &l.Price, &l.Street, &l.Town, &l.Province, &l.Beds, &l.Baths, &l.FloorArea,
		&lat, &lng, &images, &l.ListedAt, &l.FirstSeenAt, &l.LastSeenAt, &l.Active, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		l.Coordinates = &model.Coordinates{Lat: *lat, Lng: *lng}
	}
	l.Images, err = decodeImages(images)
	if err != nil {
		return nil, err
	}
	l.FirstSeenAt = l.FirstSeenAt.UTC()
	l.LastSeenAt = l.LastSeenAt.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	if l.ListedAt != nil {
		t := l.ListedAt.UTC()
		l.ListedAt = &t
	}
	return &l, nil
}

// encodeImages returns nil for an empty list so COALESCE keeps the stored
// images.
func encodeImages(images []string) (*string, error) {
	if len(images) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(images)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal images")
	}
	s := string(b)
	return &s, nil
}

func decodeImages(raw []byte) ([]string, error) {
	images := []string{}
	if len(raw) == 0 {
		return images, nil
	}
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal images")
	}
	return images, nil
}

func coordArgs(c *model.Coordinates) (lat, lng *float64) {
	if c == nil {
		return nil, nil
	}
	return &c.Lat, &c.Lng
}

// priceChanged reports whether a price point must be appended: both prices
// known and different. A missing price on either side never counts.
func priceChanged(old, next *int64) bool {
	return old != nil && next != nil && *old != *next
}

// feedQuery builds the active-feed query shared by both dialects.
func feedQuery(userID string, f model.FeedFilter, page model.Page, ph placeholder) (string, []any) {
	page = page.Normalize()
	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	var b strings.Builder
	b.WriteString(`SELECT `)
	b.WriteString(listingColumnsAs("l"))
	b.WriteString(` FROM listings l WHERE l.active`)
	b.WriteString(` AND NOT EXISTS (SELECT 1 FROM swipes s WHERE s.listing_id = l.id AND s.user_id = ` + ph(1) + `)`)

	if f.MinPrice != nil {
		b.WriteString(` AND l.price >= ` + next(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		b.WriteString(` AND l.price <= ` + next(*f.MaxPrice))
	}
	if f.MinBeds != nil {
		b.WriteString(` AND l.beds >= ` + next(*f.MinBeds))
	}
	if f.MinBaths != nil {
		b.WriteString(` AND l.baths >= ` + next(*f.MinBaths))
	}
	if f.Province != "" {
		b.WriteString(` AND LOWER(l.province) = LOWER(` + next(f.Province) + `)`)
	}
	if a := f.Area; a != nil {
		b.WriteString(` AND l.lat BETWEEN ` + next(a.MinLat) + ` AND ` + next(a.MaxLat))
		b.WriteString(` AND l.lng BETWEEN ` + next(a.MinLng) + ` AND ` + next(a.MaxLng))
	}

	b.WriteString(` ORDER BY l.listed_at DESC NULLS LAST, l.first_seen_at DESC, l.id`)
	b.WriteString(` LIMIT ` + next(page.Limit) + ` OFFSET ` + next(page.Offset))
	return b.String(), args
}

// runsQuery builds the run listing query shared by both dialects.
func runsQuery(filter RunFilter, ph placeholder) (string, []any) {
	query := `SELECT id, status, started_at, finished_at, counts, error FROM scrape_runs WHERE 1=1`
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + next(string(filter.Status))
	}
	if filter.StartedAfter != nil {
		query += ` AND started_at >= ` + next(filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + next(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + next(filter.Offset)
	}
	return query, args
}

func scanRun(row scannable) (*model.ScrapeRun, error) {
	var (
		r      model.ScrapeRun
		counts []byte
		errMsg *string
	)
	if err := row.Scan(&r.ID, &r.Status, &r.StartedAt, &r.FinishedAt, &counts, &errMsg); err != nil {
		return nil, err
	}
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &r.Counts); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run counts")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	r.StartedAt = r.StartedAt.UTC()
	if r.FinishedAt != nil {
		t := r.FinishedAt.UTC()
		r.FinishedAt = &t
	}
	return &r, nil
}

func encodeCounts(c model.RunCounts) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal run counts")
	}
	return string(b), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanAlert(row scannable) (*model.Alert, error) {
	var a model.Alert
	if err := row.Scan(&a.ID, &a.UserID, &a.ListingID, &a.SavedSearchID, &a.Type,
		&a.OldPrice, &a.NewPrice, &a.ReadAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	if a.ReadAt != nil {
		t := a.ReadAt.UTC()
		a.ReadAt = &t
	}
	return &a, nil
}

const alertColumns = `id, user_id, listing_id, saved_search_id, type, old_price, new_price, read_at, created_at`

func alertsQuery(userID string, unreadOnly bool, page model.Page, ph placeholder) (string, []any) {
	page = page.Normalize()
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ` + ph(1)
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id LIMIT ` + ph(2) + ` OFFSET ` + ph(3)
	return query, []any{userID, page.Limit, page.Offset}
}

func scanSavedSearch(row scannable) (*model.SavedSearch, error) {
	var (
		s      model.SavedSearch
		filter []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.Name, &filter, &s.AlertsEnabled, &s.CreatedAt); err != nil {
		return nil, err
	}
	if len(filter) > 0 {
		if err := json.Unmarshal(filter, &s.Filter); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal saved search filter")
		}
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
