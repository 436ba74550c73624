package cache

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/atlas-cli/internal/db"
)

// PostgresTier is a persisted tier backed by Postgres, for deployments
// where multiple processes share one cache. The pool's lifecycle belongs
// to the caller.
type PostgresTier struct {
	pool  db.Pool
	table string
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	entry      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresTier creates a PostgresTier over the given pool.
func NewPostgresTier(pool db.Pool) *PostgresTier {
	return &PostgresTier{pool: pool, table: "geocode_cache"}
}

// Migrate applies the cache schema.
func (t *PostgresTier) Migrate(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "cache: postgres migrate")
}

// Name implements Tier.
func (t *PostgresTier) Name() string { return "postgres" }

// Get implements Tier.
func (t *PostgresTier) Get(ctx context.Context, key string) ([]byte, error) {
	var entry []byte
	err := t.pool.QueryRow(ctx,
		`SELECT entry FROM geocode_cache WHERE key = $1`, key,
	).Scan(&entry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres get")
	}
	return entry, nil
}

// Set implements Tier.
func (t *PostgresTier) Set(ctx context.Context, key string, blob []byte) error {
	_, err := t.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, entry, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET entry = EXCLUDED.entry, updated_at = now()`,
		key, blob,
	)
	return eris.Wrap(err, "cache: postgres set")
}

// Delete implements Tier.
func (t *PostgresTier) Delete(ctx context.Context, key string) error {
	_, err := t.pool.Exec(ctx, `DELETE FROM geocode_cache WHERE key = $1`, key)
	return eris.Wrap(err, "cache: postgres delete")
}

// Clear implements Tier.
func (t *PostgresTier) Clear(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, `DELETE FROM geocode_cache`)
	return eris.Wrap(err, "cache: postgres clear")
}

// Count implements Tier.
func (t *PostgresTier) Count(ctx context.Context) (int, error) {
	var n int
	err := t.pool.QueryRow(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n)
	return n, eris.Wrap(err, "cache: postgres count")
}

// Sample implements Tier.
func (t *PostgresTier) Sample(ctx context.Context, n int) ([]string, error) {
	rows, err := t.pool.Query(ctx,
		`SELECT key FROM geocode_cache ORDER BY updated_at DESC LIMIT $1`, n,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres sample")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "cache: postgres sample scan")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "cache: postgres sample iterate")
}

// Close implements Tier. The pool is owned by the caller, so this is a
// no-op.
func (t *PostgresTier) Close() error { return nil }
