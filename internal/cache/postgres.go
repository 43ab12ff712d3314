package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldlens/reporting/internal/domain"
)

// PostgresStore persists cache entries in the report_cache table so cached
// results survive restarts and can be shared across instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the entry for key. Expiry is enforced in the query, so an
// expired entry is indistinguishable from an absent one.
func (s *PostgresStore) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	const q = `SELECT report_id, cache_key, parameter_hash, payload, created_at, expires_at, hit_count
		FROM report_cache
		WHERE cache_key = $1 AND expires_at > now()`

	var entry domain.CacheEntry
	err := s.pool.QueryRow(ctx, q, key).Scan(
		&entry.ReportID,
		&entry.Key,
		&entry.ParameterHash,
		&entry.Payload,
		&entry.CreatedAt,
		&entry.ExpiresAt,
		&entry.Hits,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("read cache entry: %w", err)
	}
	return entry, true, nil
}

// Put creates or replaces the entry, resetting its hit count.
func (s *PostgresStore) Put(ctx context.Context, entry domain.CacheEntry) error {
	const q = `INSERT INTO report_cache (report_id, cache_key, parameter_hash, payload, created_at, expires_at, hit_count)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		ON CONFLICT (cache_key) DO UPDATE SET
			report_id = EXCLUDED.report_id,
			parameter_hash = EXCLUDED.parameter_hash,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			hit_count = 0`

	_, err := s.pool.Exec(ctx, q,
		entry.ReportID, entry.Key, entry.ParameterHash, entry.Payload, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// IncrementHits bumps the entry's hit counter.
func (s *PostgresStore) IncrementHits(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `UPDATE report_cache SET hit_count = hit_count + 1 WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("update cache hit count: %w", err)
	}
	return nil
}

// Purge deletes expired entries and reports how many were removed. Intended
// for a periodic external sweep; correctness never depends on it running.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM report_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
