// Package cache provides the TTL-keyed result cache consulted by each
// retrieval branch.
//
// The cache is the only mutable shared state inside the pipeline. It must
// support concurrent reads; writes are last-write-wins per key, and staleness
// is bounded by the TTL rather than being correctness-critical.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/recallhq/recall-go/pkg/memory"
)

// DefaultTTL is the entry lifetime used when none is configured.
const DefaultTTL = 30 * time.Minute

// Entry is one cached branch result.
type Entry struct {
	// Chunks are the scored chunks the branch produced.
	Chunks []*memory.ScoredChunk `json:"chunks"`

	// Degraded records whether the branch reported degraded quality
	// (for example, a high embedding-dimension mismatch rate).
	Degraded bool `json:"degraded,omitempty"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry has passed its expiry.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Stats holds cache hit and miss counters.
type Stats struct {
	// Hits is the number of lookups served from the cache.
	Hits int64

	// Misses is the number of lookups that found no usable entry.
	Misses int64

	// Evictions is the number of entries removed by expiry or capacity.
	Evictions int64
}

// Cache is the result cache interface.
//
// All implementations must be safe for concurrent use: every branch of one
// retrieval call may read and write the same cache.
type Cache interface {
	// Get returns the entry for the key, or false when the key is absent
	// or the entry has expired.
	Get(ctx context.Context, key string) (*Entry, bool)

	// Set stores the entry under the key, replacing any existing entry
	// (last write wins).
	Set(ctx context.Context, key string, entry *Entry) error

	// Stats returns the cache counters.
	Stats() Stats

	// Close releases cache resources.
	Close() error
}

// Key derives the cache key for one branch lookup from the query text, the
// memory kind, and the budget parameters the branch ran with. Any change to
// a parameter yields a different key.
func Key(query string, kind memory.Kind, limit int, threshold float64) string {
	payload := fmt.Sprintf("%s|%s|%d|%.4f", query, kind, limit, threshold)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
