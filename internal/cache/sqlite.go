package cache

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteTier is the default persisted tier, backed by an embedded SQLite
// database in WAL mode.
type SQLiteTier struct {
	db *sql.DB
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	entry      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// NewSQLiteTier opens (creating if needed) a SQLite database at the given
// path, configures WAL mode, and applies the cache schema.
func NewSQLiteTier(ctx context.Context, dsn string) (*SQLiteTier, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: sqlite migrate")
	}
	return &SQLiteTier{db: db}, nil
}

// Name implements Tier.
func (t *SQLiteTier) Name() string { return "sqlite" }

// Get implements Tier.
func (t *SQLiteTier) Get(ctx context.Context, key string) ([]byte, error) {
	var entry string
	err := t.db.QueryRowContext(ctx,
		`SELECT entry FROM geocode_cache WHERE key = ?`, key,
	).Scan(&entry)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite get")
	}
	return []byte(entry), nil
}

// Set implements Tier.
func (t *SQLiteTier) Set(ctx context.Context, key string, blob []byte) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, entry, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT (key) DO UPDATE SET entry = excluded.entry, updated_at = datetime('now')`,
		key, string(blob),
	)
	return eris.Wrap(err, "cache: sqlite set")
}

// Delete implements Tier.
func (t *SQLiteTier) Delete(ctx context.Context, key string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE key = ?`, key)
	return eris.Wrap(err, "cache: sqlite delete")
}

// Clear implements Tier.
func (t *SQLiteTier) Clear(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM geocode_cache`)
	return eris.Wrap(err, "cache: sqlite clear")
}

// Count implements Tier.
func (t *SQLiteTier) Count(ctx context.Context) (int, error) {
	var n int
	err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n)
	return n, eris.Wrap(err, "cache: sqlite count")
}

// Sample implements Tier.
func (t *SQLiteTier) Sample(ctx context.Context, n int) ([]string, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT key FROM geocode_cache ORDER BY updated_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite sample")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "cache: sqlite sample scan")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "cache: sqlite sample iterate")
}

// Close implements Tier.
func (t *SQLiteTier) Close() error {
	return t.db.Close()
}
