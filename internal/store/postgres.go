package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/homeswipe/internal/db"
	"github.com/sells-group/homeswipe/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.NewPool(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY,
	source_url    TEXT NOT NULL UNIQUE,
	price         BIGINT,
	street        TEXT NOT NULL,
	town          TEXT NOT NULL DEFAULT '',
	province      TEXT NOT NULL DEFAULT '',
	beds          INTEGER NOT NULL DEFAULT 0,
	baths         DOUBLE PRECISION NOT NULL DEFAULT 0,
	floor_area    INTEGER,
	lat           DOUBLE PRECISION,
	lng           DOUBLE PRECISION,
	images        JSONB,
	listed_at     TIMESTAMPTZ,
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listings_active_seen ON listings(active, last_seen_at);
CREATE INDEX IF NOT EXISTS idx_listings_feed_order ON listings(listed_at DESC NULLS LAST, first_seen_at DESC) WHERE active;

CREATE TABLE IF NOT EXISTS price_history (
	id          TEXT PRIMARY KEY,
	listing_id  TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	price       BIGINT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_price_history_listing ON price_history(listing_id, recorded_at);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	counts      JSONB,
	error       TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_scrape_runs_single_running ON scrape_runs(status) WHERE status = 'running';
CREATE INDEX IF NOT EXISTS idx_scrape_runs_started ON scrape_runs(started_at DESC);

CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	alerts_enabled BOOLEAN NOT NULL DEFAULT true,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS saved_searches (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	filter         JSONB NOT NULL,
	alerts_enabled BOOLEAN NOT NULL DEFAULT true,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS favorites (
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS swipes (
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	direction  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	listing_id      TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	saved_search_id TEXT REFERENCES saved_searches(id) ON DELETE SET NULL,
	type            TEXT NOT NULL,
	old_price       BIGINT,
	new_price       BIGINT,
	read_at         TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_user_created ON alerts(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       DOUBLE PRECISION NOT NULL,
	lng       DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Listings ---

func (s *PostgresStore) UpsertListing(ctx context.Context, snap model.Snapshot, now time.Time) (*UpsertResult, error) {
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
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var id string
		var oldPrice *int64
		var lastSeen time.Time
		err := tx.QueryRow(ctx,
			`SELECT id, price, last_seen_at FROM listings WHERE source_url = $1 FOR UPDATE`,
			snap.SourceURL,
		).Scan(&id, &oldPrice, &lastSeen)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			id = uuid.New().String()
			res.IsNew = true
			beds, baths := 0, 0.0
			if snap.Beds != nil {
				beds = *snap.Beds
			}
			if snap.Baths != nil {
				baths = *snap.Baths
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO listings (id, source_url, price, street, town, province, beds, baths, floor_area,
					lat, lng, images, listed_at, first_seen_at, last_seen_at, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14, true, $15, $15)`,
				id, snap.SourceURL, snap.Price, snap.Street, snap.Town, snap.Province, beds, baths, snap.FloorArea,
				lat, lng, images, utcPtr(snap.ListedAt), seen, now,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert listing %s", snap.SourceURL)
			}
		case err != nil:
			return eris.Wrapf(err, "postgres: lock listing %s", snap.SourceURL)
		default:
			res.OldPrice = oldPrice
			price := snap.Price
			if seen.Before(lastSeen.UTC()) {
				// An older observation never rewrites the price or its history.
				price = nil
				res.NewPrice = oldPrice
			}
			res.PriceChanged = priceChanged(oldPrice, price)
			_, err = tx.Exec(ctx,
				`UPDATE listings SET
					price = COALESCE($2, price),
					street = $3,
					town = COALESCE(NULLIF($4, ''), town),
					province = COALESCE(NULLIF($5, ''), province),
					beds = COALESCE($6, beds),
					baths = COALESCE($7, baths),
					floor_area = COALESCE($8, floor_area),
					lat = COALESCE($9, lat),
					lng = COALESCE($10, lng),
					images = COALESCE($11, images),
					listed_at = COALESCE($12, listed_at),
					last_seen_at = GREATEST(last_seen_at, $13),
					active = true,
					updated_at = $14
				WHERE id = $1`,
				id, price, snap.Street, snap.Town, snap.Province, snap.Beds, snap.Baths, snap.FloorArea,
				lat, lng, images, utcPtr(snap.ListedAt), seen, now,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: update listing %s", snap.SourceURL)
			}
		}

		if res.PriceChanged || (res.IsNew && snap.Price != nil) {
			_, err = tx.Exec(ctx,
				`INSERT INTO price_history (id, listing_id, price, recorded_at) VALUES ($1, $2, $3, $4)`,
				uuid.New().String(), id, *snap.Price, seen,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: append price point %s", snap.SourceURL)
			}
		}

		l, err := scanListing(tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
		if err != nil {
			return eris.Wrapf(err, "postgres: reload listing %s", snap.SourceURL)
		}
		res.Listing = *l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *PostgresStore) RetireMissing(ctx context.Context, observed []string, cutoff, now time.Time) (int64, error) {
	var retired int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := db.StageKeys(ctx, tx, "_observed_urls", observed); err != nil {
			return eris.Wrap(err, "postgres: stage observed urls")
		}
		tag, err := tx.Exec(ctx,
			`UPDATE listings SET active = false, updated_at = $2
			WHERE active AND last_seen_at < $1
			AND NOT EXISTS (SELECT 1 FROM _observed_urls o WHERE o.key = listings.source_url)`,
			cutoff.UTC(), now.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "postgres: retire missing listings")
		}
		retired = tag.RowsAffected()
		return nil
	})
	return retired, err
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: listing %s", id)
	}
	return l, eris.Wrapf(err, "postgres: get listing %s", id)
}

func (s *PostgresStore) GetListingByURL(ctx context.Context, sourceURL string) (*model.Listing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE source_url = $1`, sourceURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: listing %s", sourceURL)
	}
	return l, eris.Wrapf(err, "postgres: get listing by url %s", sourceURL)
}

func (s *PostgresStore) PriceHistory(ctx context.Context, listingID string) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, listing_id, price, recorded_at FROM price_history WHERE listing_id = $1 ORDER BY recorded_at, id`,
		listingID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: price history")
	}
	defer rows.Close()

	points := []model.PricePoint{}
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.ID, &p.ListingID, &p.Price, &p.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price point")
		}
		p.RecordedAt = p.RecordedAt.UTC()
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: price history iterate")
}

// --- Runs ---

func (s *PostgresStore) StartRun(ctx context.Context, now time.Time) (*model.ScrapeRun, error) {
	run := &model.ScrapeRun{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: now.UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if db.IsUniqueViolation(err) {
		return nil, eris.Wrap(ErrRunInProgress, "postgres: start run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.ScrapeRun) error {
	if !run.Status.Terminal() || run.FinishedAt == nil {
		return eris.Errorf("postgres: finish run %s: status %s is not terminal", run.ID, run.Status)
	}
	counts, err := encodeCounts(run.Counts)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $2, finished_at = $3, counts = $4, error = $5
		WHERE id = $1 AND status = 'running'`,
		run.ID, string(run.Status), run.FinishedAt.UTC(), counts, nullString(run.Error),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunFinalized, "postgres: finish run %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) FailStaleRuns(ctx context.Context, startedBefore, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = 'failed', finished_at = $2, error = 'abandoned: exceeded stale run timeout'
		WHERE status = 'running' AND started_at < $1`,
		startedBefore.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: fail stale runs")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.ScrapeRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT id, status, started_at, finished_at, counts, error FROM scrape_runs WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", id)
	}
	return r, eris.Wrapf(err, "postgres: get run %s", id)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query, args := runsQuery(filter, dollar)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// --- Alerts ---

func (s *PostgresStore) FavoritedBy(ctx context.Context, listingID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.user_id FROM favorites f JOIN users u ON u.id = f.user_id
		WHERE f.listing_id = $1 AND u.alerts_enabled ORDER BY f.user_id`,
		listingID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: favorited by")
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan favorite")
		}
		users = append(users, id)
	}
	return users, eris.Wrap(rows.Err(), "postgres: favorited by iterate")
}

func (s *PostgresStore) AlertingSearches(ctx context.Context) ([]model.SavedSearch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.user_id, s.name, s.filter, s.alerts_enabled, s.created_at
		FROM saved_searches s JOIN users u ON u.id = s.user_id
		WHERE s.alerts_enabled AND u.alerts_enabled ORDER BY s.created_at, s.id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: alerting searches")
	}
	defer rows.Close()

	var searches []model.SavedSearch
	for rows.Next() {
		ss, err := scanSavedSearch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan saved search")
		}
		searches = append(searches, *ss)
	}
	return searches, eris.Wrap(rows.Err(), "postgres: alerting searches iterate")
}

func (s *PostgresStore) InsertAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, a := range alerts {
			_, err := tx.Exec(ctx,
				`INSERT INTO alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				a.ID, a.UserID, a.ListingID, a.SavedSearchID, string(a.Type), a.OldPrice, a.NewPrice, a.ReadAt, a.CreatedAt.UTC(),
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert alert for user %s", a.UserID)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListAlerts(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]model.Alert, error) {
	query, args := alertsQuery(userID, unreadOnly, page, dollar)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alerts")
	}
	defer rows.Close()

	alerts := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		alerts = append(alerts, *a)
	}
	return alerts, eris.Wrap(rows.Err(), "postgres: list alerts iterate")
}

func (s *PostgresStore) MarkAlertRead(ctx context.Context, userID, alertID string, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`,
		alertID, userID, now.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark alert read %s", alertID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: alert %s", alertID)
	}
	return nil
}

// --- Feed ---

func (s *PostgresStore) ActiveFeed(ctx context.Context, userID string, filter model.FeedFilter, page model.Page) ([]model.Listing, error) {
	query, args := feedQuery(userID, filter, page, dollar)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active feed")
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan feed listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: active feed iterate")
}

func (s *PostgresStore) IsFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	var fav bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)`,
		userID, listingID,
	).Scan(&fav)
	return fav, eris.Wrap(err, "postgres: is favorite")
}

func (s *PostgresStore) RecordSwipe(ctx context.Context, sw model.Swipe) error {
	if !sw.Direction.Valid() {
		return eris.Wrapf(model.ErrInvalidSwipe, "postgres: record swipe %q", sw.Direction)
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO swipes (user_id, listing_id, direction, created_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, listing_id) DO UPDATE SET direction = excluded.direction, created_at = excluded.created_at`,
			sw.UserID, sw.ListingID, string(sw.Direction), sw.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrap(err, "postgres: upsert swipe")
		}
		if sw.Direction == model.SwipeLike {
			_, err = tx.Exec(ctx,
				`INSERT INTO favorites (user_id, listing_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				sw.UserID, sw.ListingID, sw.CreatedAt.UTC(),
			)
		} else {
			_, err = tx.Exec(ctx,
				`DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2`,
				sw.UserID, sw.ListingID,
			)
		}
		return eris.Wrap(err, "postgres: update favorite")
	})
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, alerts_enabled, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.AlertsEnabled, u.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: create user %s", u.Email)
}

func (s *PostgresStore) CreateSavedSearch(ctx context.Context, ss *model.SavedSearch) error {
	if ss.ID == "" {
		ss.ID = uuid.New().String()
	}
	if ss.CreatedAt.IsZero() {
		ss.CreatedAt = time.Now().UTC()
	}
	filter, err := json.Marshal(ss.Filter)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal saved search filter")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO saved_searches (id, user_id, name, filter, alerts_enabled, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		ss.ID, ss.UserID, ss.Name, string(filter), ss.AlertsEnabled, ss.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: create saved search %s", ss.Name)
}

// --- Geocode cache ---

func (s *PostgresStore) GetCachedGeocode(ctx context.Context, key string) (*model.Coordinates, error) {
	var c model.Coordinates
	err := s.pool.QueryRow(ctx, `SELECT lat, lng FROM geocode_cache WHERE key = $1`, key).Scan(&c.Lat, &c.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached geocode")
	}
	return &c, nil
}

func (s *PostgresStore) SetCachedGeocode(ctx context.Context, key string, c model.Coordinates, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, lat, lng, cached_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET lat = excluded.lat, lng = excluded.lng, cached_at = excluded.cached_at`,
		key, c.Lat, c.Lng, now.UTC(),
	)
	return eris.Wrap(err, "postgres: set cached geocode")
}
