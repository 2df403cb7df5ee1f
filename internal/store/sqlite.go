package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/homeswipe/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
	"_txlock=immediate",
	"_time_format=sqlite",
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(sqlitePragmas, "&")
}

// NewSQLite opens a SQLite database at the given path with WAL mode and
// foreign keys enabled.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "sqlite: open %s", path)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY,
	source_url    TEXT NOT NULL UNIQUE,
	price         INTEGER,
	street        TEXT NOT NULL,
	town          TEXT NOT NULL DEFAULT '',
	province      TEXT NOT NULL DEFAULT '',
	beds          INTEGER NOT NULL DEFAULT 0,
	baths         REAL NOT NULL DEFAULT 0,
	floor_area    INTEGER,
	lat           REAL,
	lng           REAL,
	images        TEXT,
	listed_at     DATETIME,
	first_seen_at DATETIME NOT NULL,
	last_seen_at  DATETIME NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listings_active_seen ON listings(active, last_seen_at);

CREATE TABLE IF NOT EXISTS price_history (
	id          TEXT PRIMARY KEY,
	listing_id  TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	price       INTEGER NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_listing ON price_history(listing_id, recorded_at);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	counts      TEXT,
	error       TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_scrape_runs_single_running ON scrape_runs(status) WHERE status = 'running';
CREATE INDEX IF NOT EXISTS idx_scrape_runs_started ON scrape_runs(started_at);

CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	alerts_enabled BOOLEAN NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS saved_searches (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	filter         TEXT NOT NULL,
	alerts_enabled BOOLEAN NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS favorites (
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS swipes (
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	direction  TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	listing_id      TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	saved_search_id TEXT REFERENCES saved_searches(id) ON DELETE SET NULL,
	type            TEXT NOT NULL,
	old_price       INTEGER,
	new_price       INTEGER,
	read_at         DATETIME,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_user_created ON alerts(user_id, created_at);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       REAL NOT NULL,
	lng       REAL NOT NULL,
	cached_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT:
		return true
	}
	return false
}

// --- Listings ---

func (s *SQLiteStore) UpsertListing(ctx context.Context, snap model.Snapshot, now time.Time) (*UpsertResult, error) {
	images, err := encodeImages(snap.Images)
	if err != nil {
		return nil, err
	}
	seen := snap.ObservedAt
	if seen.IsZero() {
		seen = now
	}
	seen, now = seen.UTC(), now.UTC()
	lat, lng := coordArgs(snap.Coordinates)

	res := &UpsertResult{NewPrice: snap.Price}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		var oldPrice *int64
		var lastSeen time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT id, price, last_seen_at FROM listings WHERE source_url = ?`, snap.SourceURL,
		).Scan(&id, &oldPrice, &lastSeen)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			id = uuid.New().String()
			res.IsNew = true
			beds, baths := 0, 0.0
			if snap.Beds != nil {
				beds = *snap.Beds
			}
			if snap.Baths != nil {
				baths = *snap.Baths
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO listings (id, source_url, price, street, town, province, beds, baths, floor_area,
					lat, lng, images, listed_at, first_seen_at, last_seen_at, active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
				id, snap.SourceURL, snap.Price, snap.Street, snap.Town, snap.Province, beds, baths, snap.FloorArea,
				lat, lng, images, utcPtr(snap.ListedAt), seen, seen, now, now,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert listing %s", snap.SourceURL)
			}
		case err != nil:
			return eris.Wrapf(err, "sqlite: load listing %s", snap.SourceURL)
		default:
			res.OldPrice = oldPrice
			price := snap.Price
			if seen.Before(lastSeen.UTC()) {
				// An older observation never rewrites the price or its history.
				price = nil
				res.NewPrice = oldPrice
			}
			res.PriceChanged = priceChanged(oldPrice, price)
			_, err = tx.ExecContext(ctx,
				`UPDATE listings SET
					price = COALESCE(?, price),
					street = ?,
					town = COALESCE(NULLIF(?, ''), town),
					province = COALESCE(NULLIF(?, ''), province),
					beds = COALESCE(?, beds),
					baths = COALESCE(?, baths),
					floor_area = COALESCE(?, floor_area),
					lat = COALESCE(?, lat),
					lng = COALESCE(?, lng),
					images = COALESCE(?, images),
					listed_at = COALESCE(?, listed_at),
					last_seen_at = MAX(last_seen_at, ?),
					active = 1,
					updated_at = ?
				WHERE id = ?`,
				price, snap.Street, snap.Town, snap.Province, snap.Beds, snap.Baths, snap.FloorArea,
				lat, lng, images, utcPtr(snap.ListedAt), seen, now, id,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: update listing %s", snap.SourceURL)
			}
		}

		if res.PriceChanged || (res.IsNew && snap.Price != nil) {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO price_history (id, listing_id, price, recorded_at) VALUES (?, ?, ?, ?)`,
				uuid.New().String(), id, *snap.Price, seen,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: append price point %s", snap.SourceURL)
			}
		}

		l, err := scanListing(tx.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id))
		if err != nil {
			return eris.Wrapf(err, "sqlite: reload listing %s", snap.SourceURL)
		}
		res.Listing = *l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) RetireMissing(ctx context.Context, observed []string, cutoff, now time.Time) (int64, error) {
	var retired int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS _observed_urls (key TEXT PRIMARY KEY)`); err != nil {
			return eris.Wrap(err, "sqlite: create observed urls")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM _observed_urls`); err != nil {
			return eris.Wrap(err, "sqlite: clear observed urls")
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO _observed_urls (key) VALUES (?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare observed urls")
		}
		defer stmt.Close() //nolint:errcheck
		for _, u := range observed {
			if _, err := stmt.ExecContext(ctx, u); err != nil {
				return eris.Wrap(err, "sqlite: stage observed url")
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE listings SET active = 0, updated_at = ?
			WHERE active AND last_seen_at < ?
			AND NOT EXISTS (SELECT 1 FROM _observed_urls o WHERE o.key = listings.source_url)`,
			now.UTC(), cutoff.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: retire missing listings")
		}
		retired, err = res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		_, err = tx.ExecContext(ctx, `DROP TABLE _observed_urls`)
		return eris.Wrap(err, "sqlite: drop observed urls")
	})
	return retired, err
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: listing %s", id)
	}
	return l, eris.Wrapf(err, "sqlite: get listing %s", id)
}

func (s *SQLiteStore) GetListingByURL(ctx context.Context, sourceURL string) (*model.Listing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE source_url = ?`, sourceURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: listing %s", sourceURL)
	}
	return l, eris.Wrapf(err, "sqlite: get listing by url %s", sourceURL)
}

func (s *SQLiteStore) PriceHistory(ctx context.Context, listingID string) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, price, recorded_at FROM price_history WHERE listing_id = ? ORDER BY recorded_at, rowid`,
		listingID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: price history")
	}
	defer rows.Close() //nolint:errcheck

	points := []model.PricePoint{}
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.ID, &p.ListingID, &p.Price, &p.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price point")
		}
		p.RecordedAt = p.RecordedAt.UTC()
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: price history iterate")
}

// --- Runs ---

func (s *SQLiteStore) StartRun(ctx context.Context, now time.Time) (*model.ScrapeRun, error) {
	run := &model.ScrapeRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: now.UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if isSQLiteUnique(err) {
		return nil, eris.Wrap(ErrRunInProgress, "sqlite: start run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.ScrapeRun) error {
	if !run.Status.Terminal() || run.FinishedAt == nil {
		return eris.Errorf("sqlite: finish run %s: status %s is not terminal", run.ID, run.Status)
	}
	counts, err := encodeCounts(run.Counts)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET status = ?, finished_at = ?, counts = ?, error = ?
		WHERE id = ? AND status = 'running'`,
		string(run.Status), run.FinishedAt.UTC(), counts, nullString(run.Error), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunFinalized, "sqlite: finish run %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) FailStaleRuns(ctx context.Context, startedBefore, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET status = 'failed', finished_at = ?, error = 'abandoned: exceeded stale run timeout'
		WHERE status = 'running' AND started_at < ?`,
		now.UTC(), startedBefore.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: fail stale runs")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.ScrapeRun, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, counts, error FROM scrape_runs WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", id)
	}
	return r, eris.Wrapf(err, "sqlite: get run %s", id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query, args := runsQuery(filter, question)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ScrapeRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// --- Alerts ---

func (s *SQLiteStore) FavoritedBy(ctx context.Context, listingID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.user_id FROM favorites f JOIN users u ON u.id = f.user_id
		WHERE f.listing_id = ? AND u.alerts_enabled ORDER BY f.user_id`,
		listingID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: favorited by")
	}
	defer rows.Close() //nolint:errcheck

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan favorite")
		}
		users = append(users, id)
	}
	return users, eris.Wrap(rows.Err(), "sqlite: favorited by iterate")
}

func (s *SQLiteStore) AlertingSearches(ctx context.Context) ([]model.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.name, s.filter, s.alerts_enabled, s.created_at
		FROM saved_searches s JOIN users u ON u.id = s.user_id
		WHERE s.alerts_enabled AND u.alerts_enabled ORDER BY s.created_at, s.id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: alerting searches")
	}
	defer rows.Close() //nolint:errcheck

	var searches []model.SavedSearch
	for rows.Next() {
		ss, err := scanSavedSearch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan saved search")
		}
		searches = append(searches, *ss)
	}
	return searches, eris.Wrap(rows.Err(), "sqlite: alerting searches iterate")
}

func (s *SQLiteStore) InsertAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare insert alert")
		}
		defer stmt.Close() //nolint:errcheck
		for _, a := range alerts {
			_, err := stmt.ExecContext(ctx,
				a.ID, a.UserID, a.ListingID, a.SavedSearchID, string(a.Type), a.OldPrice, a.NewPrice, a.ReadAt, a.CreatedAt.UTC(),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert alert for user %s", a.UserID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]model.Alert, error) {
	query, args := alertsQuery(userID, unreadOnly, page, question)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alerts")
	}
	defer rows.Close() //nolint:errcheck

	alerts := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert")
		}
		alerts = append(alerts, *a)
	}
	return alerts, eris.Wrap(rows.Err(), "sqlite: list alerts iterate")
}

func (s *SQLiteStore) MarkAlertRead(ctx context.Context, userID, alertID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		now.UTC(), alertID, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark alert read %s", alertID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: alert %s", alertID)
	}
	return nil
}

// --- Feed ---

func (s *SQLiteStore) ActiveFeed(ctx context.Context, userID string, filter model.FeedFilter, page model.Page) ([]model.Listing, error) {
	query, args := feedQuery(userID, filter, page, question)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active feed")
	}
	defer rows.Close() //nolint:errcheck

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan feed listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: active feed iterate")
}

func (s *SQLiteStore) IsFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	var fav bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = ? AND listing_id = ?)`,
		userID, listingID,
	).Scan(&fav)
	return fav, eris.Wrap(err, "sqlite: is favorite")
}

func (s *SQLiteStore) RecordSwipe(ctx context.Context, sw model.Swipe) error {
	if !sw.Direction.Valid() {
		return eris.Wrapf(model.ErrInvalidSwipe, "sqlite: record swipe %q", sw.Direction)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO swipes (user_id, listing_id, direction, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, listing_id) DO UPDATE SET direction = excluded.direction, created_at = excluded.created_at`,
			sw.UserID, sw.ListingID, string(sw.Direction), sw.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: upsert swipe")
		}
		if sw.Direction == model.SwipeLike {
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO favorites (user_id, listing_id, created_at) VALUES (?, ?, ?)`,
				sw.UserID, sw.ListingID, sw.CreatedAt.UTC(),
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM favorites WHERE user_id = ? AND listing_id = ?`,
				sw.UserID, sw.ListingID,
			)
		}
		return eris.Wrap(err, "sqlite: update favorite")
	})
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, alerts_enabled, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.AlertsEnabled, u.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: create user %s", u.Email)
}

func (s *SQLiteStore) CreateSavedSearch(ctx context.Context, ss *model.SavedSearch) error {
	if ss.ID == "" {
		ss.ID = uuid.New().String()
	}
	if ss.CreatedAt.IsZero() {
		ss.CreatedAt = time.Now().UTC()
	}
	filter, err := json.Marshal(ss.Filter)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal saved search filter")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_searches (id, user_id, name, filter, alerts_enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ss.ID, ss.UserID, ss.Name, string(filter), ss.AlertsEnabled, ss.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: create saved search %s", ss.Name)
}

// --- Geocode cache ---

func (s *SQLiteStore) GetCachedGeocode(ctx context.Context, key string) (*model.Coordinates, error) {
	var c model.Coordinates
	err := s.db.QueryRowContext(ctx, `SELECT lat, lng FROM geocode_cache WHERE key = ?`, key).Scan(&c.Lat, &c.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached geocode")
	}
	return &c, nil
}

func (s *SQLiteStore) SetCachedGeocode(ctx context.Context, key string, c model.Coordinates, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, cached_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET lat = excluded.lat, lng = excluded.lng, cached_at = excluded.cached_at`,
		key, c.Lat, c.Lng, now.UTC(),
	)
	return eris.Wrap(err, "sqlite: set cached geocode")
}
