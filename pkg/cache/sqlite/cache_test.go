package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/cache"
	sqliteCache "github.com/recallhq/recall-go/pkg/cache/sqlite"
	"github.com/recallhq/recall-go/pkg/memory"
)

func setupCache(t *testing.T) *sqliteCache.Cache {
	t.Helper()

	c, err := sqliteCache.New(&sqliteCache.Config{
		DBPath: filepath.Join(t.TempDir(), "cache.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func cachedEntry(content string) *cache.Entry {
	return &cache.Entry{
		Chunks: []*memory.ScoredChunk{
			{Chunk: &memory.Chunk{ID: "c1", Content: content, Kind: memory.KindCode}, Similarity: 0.88},
		},
	}
}

func TestSQLiteCache_RequiresDBPath(t *testing.T) {
	_, err := sqliteCache.New(&sqliteCache.Config{})
	assert.Error(t, err)
}

func TestSQLiteCache_SetGet(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	key := cache.Key("query", memory.KindCode, 10, 0.65)
	require.NoError(t, c.Set(ctx, key, cachedEntry("persisted content")))

	entry, ok := c.Get(ctx, key)
	require.True(t, ok)
	require.Len(t, entry.Chunks, 1)
	assert.Equal(t, "persisted content", entry.Chunks[0].Chunk.Content)
	assert.Equal(t, 0.88, entry.Chunks[0].Similarity)
}

func TestSQLiteCache_MissOnAbsentKey(t *testing.T) {
	c := setupCache(t)

	_, ok := c.Get(context.Background(), "absent")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestSQLiteCache_ExpiredEntryEvictedOnGet(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	entry := cachedEntry("stale")
	entry.CreatedAt = time.Now().Add(-2 * time.Hour)
	entry.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, c.Set(ctx, "stale-key", entry))

	_, ok := c.Get(ctx, "stale-key")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestSQLiteCache_Upsert(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", cachedEntry("first")))
	require.NoError(t, c.Set(ctx, "k", cachedEntry("second")))

	entry, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "second", entry.Chunks[0].Chunk.Content)
}

func TestSQLiteCache_DegradedFlagRoundTrip(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	entry := cachedEntry("degraded branch")
	entry.Degraded = true
	require.NoError(t, c.Set(ctx, "k", entry))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.True(t, got.Degraded)
}

func TestSQLiteCache_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first, err := sqliteCache.New(&sqliteCache.Config{DBPath: dbPath})
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", cachedEntry("survives restart")))
	require.NoError(t, first.Close())

	second, err := sqliteCache.New(&sqliteCache.Config{DBPath: dbPath})
	require.NoError(t, err)
	defer second.Close()

	entry, ok := second.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "survives restart", entry.Chunks[0].Chunk.Content)
}
