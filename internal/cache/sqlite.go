package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS lint_results (
	key        TEXT PRIMARY KEY,
	records    BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS lint_results_expires_at ON lint_results (expires_at)`,
}

// SQLiteCache keeps one row per key in a SQLite database. Records are
// stored msgpack-encoded; expiry times are Unix nanoseconds.
type SQLiteCache struct {
	db     *sql.DB
	hits   atomic.Int64
	misses atomic.Int64
}

// OpenSQLiteCache opens or creates the database at path. ":memory:" gives
// a private in-memory database.
func OpenSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), cacheDirPerm); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database %s: %w", path, err)
	}
	// One connection keeps ":memory:" a single database and serializes writers.
	db.SetMaxOpenConns(1)
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create cache schema in %s: %w", path, err)
		}
	}
	return &SQLiteCache{db: db}, nil
}

// Close closes the database.
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

// Get retrieves the records stored under key.
func (s *SQLiteCache) Get(ctx context.Context, key string) ([]diagnostics.Record, bool) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT records FROM lint_results WHERE key = ? AND expires_at > ?`,
		key, time.Now().UnixNano()).Scan(&blob)
	if err != nil {
		s.misses.Add(1)
		return nil, false
	}
	var records []diagnostics.Record
	if err := msgpack.Unmarshal(blob, &records); err != nil {
		s.Delete(ctx, key)
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return records, true
}

// Set stores records under key, replacing any previous row.
func (s *SQLiteCache) Set(ctx context.Context, key string, records []diagnostics.Record, ttl time.Duration) {
	blob, err := msgpack.Marshal(records)
	if err != nil {
		return
	}
	now := time.Now()
	_, _ = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO lint_results (key, records, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		key, blob, now.UnixNano(), now.Add(ttl).UnixNano())
}

// Delete removes a value from the cache.
func (s *SQLiteCache) Delete(ctx context.Context, key string) {
	_, _ = s.db.ExecContext(ctx, `DELETE FROM lint_results WHERE key = ?`, key)
}

// Clear removes all values from the cache.
func (s *SQLiteCache) Clear(ctx context.Context) {
	_, _ = s.db.ExecContext(ctx, `DELETE FROM lint_results`)
}

// Stats implements StatsReporter.
func (s *SQLiteCache) Stats(ctx context.Context) Stats {
	st := Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
	_ = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) FROM lint_results`,
		time.Now().UnixNano()).Scan(&st.Entries, &st.Expired)
	return st
}

// Prune deletes expired rows and returns how many it deleted.
func (s *SQLiteCache) Prune(ctx context.Context) int {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lint_results WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return int(n)
}

var (
	_ Cache         = (*SQLiteCache)(nil)
	_ StatsReporter = (*SQLiteCache)(nil)
	_ Pruner        = (*SQLiteCache)(nil)
)
