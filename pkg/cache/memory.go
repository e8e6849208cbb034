package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is an in-process TTL cache.
//
// Reads take a shared lock; writes take an exclusive lock and are
// last-write-wins per key. When the entry count exceeds the configured
// capacity, expired entries are swept first, then the oldest entries are
// evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	ttl        time.Duration
	maxEntries int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// MemoryCacheConfig configures a MemoryCache.
type MemoryCacheConfig struct {
	// TTL is the default entry lifetime, applied when a stored entry has a
	// zero ExpiresAt. Default: 30 minutes.
	TTL time.Duration

	// MaxEntries bounds the cache size. Default: 1024.
	MaxEntries int
}

// NewMemoryCache creates an in-process cache. A nil config uses the
// defaults.
func NewMemoryCache(cfg *MemoryCacheConfig) *MemoryCache {
	if cfg == nil {
		cfg = &MemoryCacheConfig{}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	return &MemoryCache{
		entries:    make(map[string]*Entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Get returns the entry for the key if present and not expired.
func (c *MemoryCache) Get(ctx context.Context, key string) (*Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.Expired(time.Now()) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry, true
}

// Set stores the entry under the key. An entry without an explicit expiry
// gets the cache's default TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *Entry) error {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.CreatedAt.Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	if len(c.entries) > c.maxEntries {
		c.evictLocked(now)
	}
	return nil
}

// Stats returns the cache counters.
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close drops all entries.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	return nil
}

// evictLocked removes expired entries, then the oldest entries until the
// cache fits its capacity. Caller holds the write lock.
func (c *MemoryCache) evictLocked(now time.Time) {
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			c.evictions.Add(1)
		}
	}

	for len(c.entries) > c.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, entry := range c.entries {
			if oldestKey == "" || entry.CreatedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.CreatedAt
			}
		}
		delete(c.entries, oldestKey)
		c.evictions.Add(1)
	}
}
