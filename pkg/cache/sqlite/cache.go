// Package sqlite provides a SQLite-backed result cache.
//
// Entries persist across process restarts as simple keyed records of
// {key, value, expires_at}, keeping the on-disk representation swappable.
// Values are JSON-encoded cache entries.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/recallhq/recall-go/pkg/cache"
)

// Cache implements cache.Cache on a SQLite database file.
type Cache struct {
	db  *sql.DB
	ttl time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Config contains configuration for the SQLite cache.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TTL is the default entry lifetime. Default: 30 minutes.
	TTL time.Duration
}

// New opens (or creates) a SQLite-backed cache.
//
// Parameters:
//   - cfg: Configuration containing the database path and default TTL
//
// Returns:
//   - *Cache: The cache instance
//   - error: Error if opening the database or creating the table fails
func New(cfg *Config) (*Cache, error) {
	if cfg == nil || cfg.DBPath == "" {
		return nil, fmt.Errorf("sqlite cache: db path is required")
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite cache: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite cache: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	c := &Cache{db: db, ttl: ttl}
	if err := c.initTables(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

func (c *Cache) initTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("sqlite cache: initTables: %w", err)
	}
	return nil
}

// Get returns the entry for the key if present and not expired. Expired rows
// are deleted opportunistically on lookup.
func (c *Cache) Get(ctx context.Context, key string) (*cache.Entry, bool) {
	var value string
	var expiresAt time.Time

	row := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		c.misses.Add(1)
		return nil, false
	}

	if time.Now().After(expiresAt) {
		_, _ = c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		c.evictions.Add(1)
		c.misses.Add(1)
		return nil, false
	}

	var entry cache.Entry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &entry, true
}

// Set stores the entry under the key, replacing any existing row.
func (c *Cache) Set(ctx context.Context, key string, entry *cache.Entry) error {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.CreatedAt.Add(c.ttl)
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("sqlite cache: Set: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, string(value), entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("sqlite cache: Set: %w", err)
	}
	return nil
}

// Stats returns the cache counters for this process.
func (c *Cache) Stats() cache.Stats {
	return cache.Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
