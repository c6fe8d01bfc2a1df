package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// The quota reservation relies on a single UPDATE being atomic; keep one
	// writer connection so modernc's driver never interleaves writes.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	location     TEXT NOT NULL,
	radius_km    REAL NOT NULL,
	max_results  INTEGER NOT NULL,
	result_count INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS businesses (
	place_id     TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	address      TEXT,
	phone        TEXT,
	website      TEXT,
	rating       REAL,
	review_count INTEGER,
	latitude     REAL,
	longitude    REAL,
	types        TEXT,
	lead_score   INTEGER NOT NULL DEFAULT 0,
	search_id    TEXT NOT NULL REFERENCES searches(id),
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS search_results (
	search_id TEXT NOT NULL REFERENCES searches(id),
	place_id  TEXT NOT NULL REFERENCES businesses(place_id),
	position  INTEGER NOT NULL,
	PRIMARY KEY (search_id, place_id)
);

CREATE TABLE IF NOT EXISTS api_usage (
	month       TEXT PRIMARY KEY,
	calls_used  INTEGER NOT NULL DEFAULT 0,
	calls_limit INTEGER NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at);
CREATE INDEX IF NOT EXISTS idx_businesses_website ON businesses(website);
CREATE INDEX IF NOT EXISTS idx_businesses_rating ON businesses(rating);
CREATE INDEX IF NOT EXISTS idx_search_results_search_id ON search_results(search_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSearch(ctx context.Context, rec model.SearchRecord, businesses []model.Business) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin save search")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO searches (id, query, location, radius_km, max_results, result_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Query, rec.Location, rec.RadiusKm, rec.MaxResults, rec.ResultCount, rec.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert search")
	}

	for i, b := range businesses {
		typesJSON, err := json.Marshal(b.Types)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: marshal types for %s", b.PlaceID)
		}

		// Refresh policy: a place seen again keeps its original created_at
		// but picks up the latest provider data and score.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO businesses
				(place_id, name, address, phone, website, rating, review_count,
				 latitude, longitude, types, lead_score, search_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(place_id) DO UPDATE SET
				name = excluded.name,
				address = excluded.address,
				phone = excluded.phone,
				website = excluded.website,
				rating = excluded.rating,
				review_count = excluded.review_count,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				types = excluded.types,
				lead_score = excluded.lead_score,
				search_id = excluded.search_id`,
			b.PlaceID, b.Name, b.Address, b.Phone, b.Website, b.Rating, b.ReviewCount,
			b.Latitude, b.Longitude, string(typesJSON), b.LeadScore, rec.ID, rec.CreatedAt,
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: upsert business %s", b.PlaceID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO search_results (search_id, place_id, position) VALUES (?, ?, ?)`,
			rec.ID, b.PlaceID, i,
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: associate %s", b.PlaceID)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit save search")
	}
	return rec.ID, nil
}

const businessColumns = `b.place_id, b.name, b.address, b.phone, b.website,
	b.rating, b.review_count, b.latitude, b.longitude, b.types,
	b.lead_score, b.search_id, b.created_at`

// businessWhere builds the WHERE clause shared by ListBusinesses and its
// count query. Filters combine as a conjunction.
func businessWhere(filter BusinessFilter, placeholder func(int) string) (string, []any) {
	where := ` WHERE 1=1`
	var args []any

	if filter.SearchID != "" {
		args = append(args, filter.SearchID)
		where += ` AND b.place_id IN (SELECT place_id FROM search_results WHERE search_id = ` + placeholder(len(args)) + `)`
	}
	if filter.HasWebsite != nil {
		if *filter.HasWebsite {
			where += ` AND b.website IS NOT NULL AND b.website != ''`
		} else {
			where += ` AND (b.website IS NULL OR b.website = '')`
		}
	}
	if filter.MinRating != nil {
		args = append(args, *filter.MinRating)
		where += ` AND b.rating >= ` + placeholder(len(args))
	}
	return where, args
}

func questionMark(int) string { return "?" }

func (s *SQLiteStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, int, error) {
	where, args := businessWhere(filter, questionMark)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM businesses b`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count businesses")
	}

	query := `SELECT ` + businessColumns + ` FROM businesses b` + where +
		` ORDER BY b.created_at DESC, b.lead_score DESC LIMIT ? OFFSET ?`

	// Limit 0 falls back to the default page size; a negative limit means
	// no limit (SQLite treats LIMIT -1 as unbounded).
	limit := filter.Limit
	if limit == 0 {
		limit = 50
	} else if limit < 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close()

	var businesses []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, 0, err
		}
		businesses = append(businesses, *b)
	}
	return businesses, total, eris.Wrap(rows.Err(), "sqlite: list businesses iterate")
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, placeID string) (*model.Business, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses b WHERE b.place_id = ?`, placeID)
	b, err := scanBusiness(row)
	if err == errNotFound {
		return nil, nil
	}
	return b, err
}

func (s *SQLiteStore) SummaryStats(ctx context.Context) (*model.SummaryStats, error) {
	var stats model.SummaryStats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN website IS NOT NULL AND website != '' THEN 1 ELSE 0 END), 0),
		       AVG(rating)
		FROM businesses`,
	).Scan(&stats.TotalBusinesses, &stats.WithWebsite, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summary stats")
	}
	stats.WithoutWebsite = stats.TotalBusinesses - stats.WithWebsite
	if avg.Valid {
		stats.AverageRating = &avg.Float64
	}
	return &stats, nil
}

func (s *SQLiteStore) ListSearchHistory(ctx context.Context, limit int) ([]model.SearchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, location, radius_km, max_results, result_count, created_at
		 FROM searches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list search history")
	}
	defer rows.Close()

	var records []model.SearchRecord
	for rows.Next() {
		var r model.SearchRecord
		if err := rows.Scan(&r.ID, &r.Query, &r.Location, &r.RadiusKm, &r.MaxResults, &r.ResultCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list search history iterate")
}

func (s *SQLiteStore) ReserveCalls(ctx context.Context, month string, n, limit int) (int, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: begin reserve")
	}
	defer tx.Rollback() //nolint:errcheck

	// Lazy rollover: the first reservation of a new month creates a fresh
	// counter. The stored limit tracks the configured limit.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO api_usage (month, calls_used, calls_limit, updated_at)
		 VALUES (?, 0, ?, ?)
		 ON CONFLICT(month) DO UPDATE SET calls_limit = excluded.calls_limit`,
		month, limit, time.Now().UTC(),
	)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: ensure usage row")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE api_usage SET calls_used = calls_used + ?, updated_at = ?
		 WHERE month = ? AND calls_used + ? <= calls_limit`,
		n, time.Now().UTC(), month, n,
	)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: reserve calls")
	}
	granted, err := res.RowsAffected()
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: reserve rows affected")
	}

	var used int
	if err := tx.QueryRowContext(ctx, `SELECT calls_used FROM api_usage WHERE month = ?`, month).Scan(&used); err != nil {
		return 0, false, eris.Wrap(err, "sqlite: read usage")
	}

	if err := tx.Commit(); err != nil {
		return 0, false, eris.Wrap(err, "sqlite: commit reserve")
	}
	return used, granted > 0, nil
}

func (s *SQLiteStore) GetUsage(ctx context.Context, month string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx, `SELECT calls_used FROM api_usage WHERE month = ?`, month).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return used, eris.Wrap(err, "sqlite: get usage")
}

// helpers

var errNotFound = eris.New("not found")

type scannable interface {
	Scan(dest ...any) error
}

func scanBusiness(row scannable) (*model.Business, error) {
	var b model.Business
	var address, phone, website, typesJSON sql.NullString
	var rating, latitude, longitude sql.NullFloat64
	var reviewCount sql.NullInt64

	err := row.Scan(&b.PlaceID, &b.Name, &address, &phone, &website,
		&rating, &reviewCount, &latitude, &longitude, &typesJSON,
		&b.LeadScore, &b.SearchID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan business")
	}

	if address.Valid && address.String != "" {
		b.Address = &address.String
	}
	if phone.Valid && phone.String != "" {
		b.Phone = &phone.String
	}
	if website.Valid && website.String != "" {
		b.Website = &website.String
	}
	if rating.Valid {
		b.Rating = &rating.Float64
	}
	if reviewCount.Valid {
		rc := int(reviewCount.Int64)
		b.ReviewCount = &rc
	}
	if latitude.Valid {
		b.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		b.Longitude = &longitude.Float64
	}
	if typesJSON.Valid && typesJSON.String != "" {
		if err := json.Unmarshal([]byte(typesJSON.String), &b.Types); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal types for %s", b.PlaceID)
		}
	}
	return &b, nil
}
