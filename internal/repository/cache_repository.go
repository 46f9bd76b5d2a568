package repository

import (
	"context"
	"time"

	"market-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS market_data_cache (
    data_type          TEXT        NOT NULL,
    market_session     TEXT        NOT NULL,
    data_payload       JSONB       NOT NULL,
    cache_timestamp    TIMESTAMPTZ NOT NULL,
    expiry_timestamp   TIMESTAMPTZ NOT NULL,
    api_source         TEXT        NOT NULL,
    data_quality_score INT         NOT NULL DEFAULT 100,
    PRIMARY KEY (data_type, market_session)
);

CREATE INDEX IF NOT EXISTS idx_market_data_cache_expiry
    ON market_data_cache (expiry_timestamp);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CacheRepository owns the market_data_cache table: one row per
// (data_type, market_session), upsert-on-write, lazy expiry on read.
type CacheRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewCacheRepository(pool PgxPool, tracer trace.Tracer) *CacheRepository {
	return &CacheRepository{pool: pool, tracer: tracer}
}

func (r *CacheRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "cache-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createCacheTable)
	return err
}

// Get returns the entry for the key, or nil when it is missing or its
// expiry has passed. Expired rows are left in place for the cleanup job.
func (r *CacheRepository) Get(ctx context.Context, dataType domain.IndicatorType, session domain.MarketSession, now time.Time) (*domain.CacheEntry, error) {
	ctx, span := r.tracer.Start(ctx, "cache-repo.get")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT data_type, market_session, data_payload, cache_timestamp, expiry_timestamp, api_source, data_quality_score
		 FROM market_data_cache
		 WHERE data_type = $1 AND market_session = $2 AND expiry_timestamp > $3`,
		string(dataType), string(session), now,
	)

	entry := &domain.CacheEntry{}
	err := row.Scan(&entry.DataType, &entry.Session, &entry.Payload,
		&entry.CachedAt, &entry.ExpiresAt, &entry.Source, &entry.QualityScore)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Upsert writes an entry, last write wins per key.
func (r *CacheRepository) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	ctx, span := r.tracer.Start(ctx, "cache-repo.upsert")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO market_data_cache
		     (data_type, market_session, data_payload, cache_timestamp, expiry_timestamp, api_source, data_quality_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (data_type, market_session) DO UPDATE SET
		     data_payload = EXCLUDED.data_payload,
		     cache_timestamp = EXCLUDED.cache_timestamp,
		     expiry_timestamp = EXCLUDED.expiry_timestamp,
		     api_source = EXCLUDED.api_source,
		     data_quality_score = EXCLUDED.data_quality_score`,
		string(entry.DataType), string(entry.Session), []byte(entry.Payload),
		entry.CachedAt, entry.ExpiresAt, entry.Source, entry.QualityScore,
	)
	return err
}

// DeleteExpired removes rows whose expiry has passed and reports how many
// went. Only the scheduled cleanup job calls this, never the read path.
func (r *CacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "cache-repo.delete-expired")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM market_data_cache WHERE expiry_timestamp <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Stats counts stored and expired rows and lists the distinct data types.
func (r *CacheRepository) Stats(ctx context.Context, now time.Time) (total int, expired int, dataTypes []domain.IndicatorType, err error) {
	ctx, span := r.tracer.Start(ctx, "cache-repo.stats")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE expiry_timestamp <= $1)
		 FROM market_data_cache`, now)
	if err = row.Scan(&total, &expired); err != nil {
		return 0, 0, nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT data_type FROM market_data_cache ORDER BY data_type`)
	if err != nil {
		return 0, 0, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var dt string
		if err = rows.Scan(&dt); err != nil {
			return 0, 0, nil, err
		}
		dataTypes = append(dataTypes, domain.IndicatorType(dt))
	}
	return total, expired, dataTypes, rows.Err()
}
