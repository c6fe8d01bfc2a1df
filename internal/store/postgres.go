package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS searches (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	location     TEXT NOT NULL,
	radius_km    DOUBLE PRECISION NOT NULL,
	max_results  INTEGER NOT NULL,
	result_count INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS businesses (
	place_id     TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	address      TEXT,
	phone        TEXT,
	website      TEXT,
	rating       DOUBLE PRECISION,
	review_count INTEGER,
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	types        JSONB,
	lead_score   INTEGER NOT NULL DEFAULT 0,
	search_id    TEXT NOT NULL REFERENCES searches(id),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
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
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at);
CREATE INDEX IF NOT EXISTS idx_businesses_website ON businesses(website);
CREATE INDEX IF NOT EXISTS idx_businesses_rating ON businesses(rating);
CREATE INDEX IF NOT EXISTS idx_search_results_search_id ON search_results(search_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSearch(ctx context.Context, rec model.SearchRecord, businesses []model.Business) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin save search")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO searches (id, query, location, radius_km, max_results, result_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Query, rec.Location, rec.RadiusKm, rec.MaxResults, rec.ResultCount, rec.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert search")
	}

	for i, b := range businesses {
		typesJSON, err := json.Marshal(b.Types)
		if err != nil {
			return "", eris.Wrapf(err, "postgres: marshal types for %s", b.PlaceID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO businesses
				(place_id, name, address, phone, website, rating, review_count,
				 latitude, longitude, types, lead_score, search_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (place_id) DO UPDATE SET
				name = EXCLUDED.name,
				address = EXCLUDED.address,
				phone = EXCLUDED.phone,
				website = EXCLUDED.website,
				rating = EXCLUDED.rating,
				review_count = EXCLUDED.review_count,
				latitude = EXCLUDED.latitude,
				longitude = EXCLUDED.longitude,
				types = EXCLUDED.types,
				lead_score = EXCLUDED.lead_score,
				search_id = EXCLUDED.search_id`,
			b.PlaceID, b.Name, b.Address, b.Phone, b.Website, b.Rating, b.ReviewCount,
			b.Latitude, b.Longitude, string(typesJSON), b.LeadScore, rec.ID, rec.CreatedAt,
		)
		if err != nil {
			return "", eris.Wrapf(err, "postgres: upsert business %s", b.PlaceID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO search_results (search_id, place_id, position) VALUES ($1, $2, $3)
			 ON CONFLICT (search_id, place_id) DO NOTHING`,
			rec.ID, b.PlaceID, i,
		)
		if err != nil {
			return "", eris.Wrapf(err, "postgres: associate %s", b.PlaceID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit save search")
	}
	return rec.ID, nil
}

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func (s *PostgresStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, int, error) {
	where, args := businessWhere(filter, dollarPlaceholder)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM businesses b`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count businesses")
	}

	// Limit 0 falls back to the default page size; a negative limit means
	// no limit (LIMIT NULL in Postgres).
	var limit any = filter.Limit
	if filter.Limit == 0 {
		limit = 50
	} else if filter.Limit < 0 {
		limit = nil
	}
	args = append(args, limit)
	query := `SELECT ` + businessColumns + ` FROM businesses b` + where +
		` ORDER BY b.created_at DESC, b.lead_score DESC LIMIT ` + dollarPlaceholder(len(args))
	args = append(args, filter.Offset)
	query += ` OFFSET ` + dollarPlaceholder(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list businesses")
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
	return businesses, total, eris.Wrap(rows.Err(), "postgres: list businesses iterate")
}

func (s *PostgresStore) GetBusiness(ctx context.Context, placeID string) (*model.Business, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses b WHERE b.place_id = $1`, placeID)
	b, err := scanBusiness(row)
	if err == errNotFound {
		return nil, nil
	}
	return b, err
}

func (s *PostgresStore) SummaryStats(ctx context.Context) (*model.SummaryStats, error) {
	var stats model.SummaryStats
	var avg sql.NullFloat64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN website IS NOT NULL AND website != '' THEN 1 ELSE 0 END), 0),
		       AVG(rating)
		FROM businesses`,
	).Scan(&stats.TotalBusinesses, &stats.WithWebsite, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summary stats")
	}
	stats.WithoutWebsite = stats.TotalBusinesses - stats.WithWebsite
	if avg.Valid {
		stats.AverageRating = &avg.Float64
	}
	return &stats, nil
}

func (s *PostgresStore) ListSearchHistory(ctx context.Context, limit int) ([]model.SearchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, query, location, radius_km, max_results, result_count, created_at
		 FROM searches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list search history")
	}
	defer rows.Close()

	var records []model.SearchRecord
	for rows.Next() {
		var r model.SearchRecord
		if err := rows.Scan(&r.ID, &r.Query, &r.Location, &r.RadiusKm, &r.MaxResults, &r.ResultCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan search record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list search history iterate")
}

func (s *PostgresStore) ReserveCalls(ctx context.Context, month string, n, limit int) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: begin reserve")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO api_usage (month, calls_used, calls_limit, updated_at)
		 VALUES ($1, 0, $2, now())
		 ON CONFLICT (month) DO UPDATE SET calls_limit = EXCLUDED.calls_limit`,
		month, limit,
	)
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: ensure usage row")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE api_usage SET calls_used = calls_used + $1, updated_at = now()
		 WHERE month = $2 AND calls_used + $1 <= calls_limit`,
		n, month,
	)
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: reserve calls")
	}

	var used int
	if err := tx.QueryRow(ctx, `SELECT calls_used FROM api_usage WHERE month = $1`, month).Scan(&used); err != nil {
		return 0, false, eris.Wrap(err, "postgres: read usage")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, eris.Wrap(err, "postgres: commit reserve")
	}
	return used, tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetUsage(ctx context.Context, month string) (int, error) {
	var used int
	err := s.pool.QueryRow(ctx, `SELECT calls_used FROM api_usage WHERE month = $1`, month).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return used, eris.Wrap(err, "postgres: get usage")
}
