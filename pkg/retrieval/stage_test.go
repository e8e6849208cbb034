package retrieval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/cache"
	"github.com/recallhq/recall-go/pkg/memory"
	"github.com/recallhq/recall-go/pkg/retrieval"
)

func chunk(id string, embedding []float64) *memory.Chunk {
	return &memory.Chunk{
		ID:        id,
		Content:   "content of " + id,
		Embedding: embedding,
		Kind:      memory.KindCode,
	}
}

func newStage(resultCache cache.Cache) *retrieval.Stage {
	return retrieval.NewStage(memory.KindCode, resultCache, nil, nil)
}

func TestRetrieve_ThresholdFilter(t *testing.T) {
	stage := newStage(nil)
	query := []float64{1, 0}

	pool := []*memory.Chunk{
		chunk("aligned", []float64{1, 0}),
		chunk("askew", []float64{0.5, 1}),    // similarity ~0.447
		chunk("orthogonal", []float64{0, 1}), // similarity 0
	}

	result := stage.Retrieve(context.Background(), "q", query, pool, 10, 0.8, false)

	require.Equal(t, retrieval.StatusOK, result.Status)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "aligned", result.Chunks[0].Chunk.ID)
}

func TestRetrieve_SortedBySimilarity(t *testing.T) {
	stage := newStage(nil)
	query := []float64{1, 0}

	pool := []*memory.Chunk{
		chunk("weaker", []float64{1, 0.5}),
		chunk("exact", []float64{1, 0}),
		chunk("weak", []float64{1, 1}),
	}

	result := stage.Retrieve(context.Background(), "q", query, pool, 10, 0.5, false)

	require.Len(t, result.Chunks, 3)
	assert.Equal(t, "exact", result.Chunks[0].Chunk.ID)
	assert.Equal(t, "weaker", result.Chunks[1].Chunk.ID)
	assert.Equal(t, "weak", result.Chunks[2].Chunk.ID)
}

func TestRetrieve_OversampledSuperset(t *testing.T) {
	stage := newStage(nil)
	query := []float64{1, 0}

	// Each chunk scores 0.6 against the query but only 0.36 against its
	// peers, so expansion pulls nothing extra in.
	query = make([]float64, 11)
	query[0] = 1
	pool := make([]*memory.Chunk, 0, 10)
	for i := 0; i < 10; i++ {
		embedding := make([]float64, 11)
		embedding[0] = 0.6
		embedding[i+1] = 0.8
		pool = append(pool, chunk(string(rune('a'+i)), embedding))
	}

	result := stage.Retrieve(context.Background(), "q", query, pool, 2, 0.5, false)

	// limit 2, oversample factor 3: the superset keeps 6 candidates for
	// the later salience ranking to choose from.
	assert.Len(t, result.Chunks, 6)
}

func TestRetrieve_ExpansionTagsRelated(t *testing.T) {
	stage := newStage(nil)
	query := []float64{1, 0, 0}

	// "direct" matches the query; "neighbor" matches "direct" but not the
	// query itself.
	pool := []*memory.Chunk{
		chunk("direct", []float64{1, 0.1, 0}),
		chunk("neighbor", []float64{1, 0.5, 0.5}),
	}

	result := stage.Retrieve(context.Background(), "q", query, pool, 5, 0.9, false)

	require.Len(t, result.Chunks, 2)

	var neighbor *memory.ScoredChunk
	for _, sc := range result.Chunks {
		if sc.Chunk.ID == "neighbor" {
			neighbor = sc
		}
	}
	require.NotNil(t, neighbor, "neighbor should be pulled in by expansion")
	assert.Equal(t, "direct", neighbor.RelatedTo)

	// Expansion similarity is discounted so direct hits rank first.
	assert.Equal(t, "direct", result.Chunks[0].Chunk.ID)
}

func TestRetrieve_ExpansionNeverDuplicates(t *testing.T) {
	stage := newStage(nil)
	query := []float64{1, 0}

	pool := []*memory.Chunk{
		chunk("a", []float64{1, 0}),
		chunk("b", []float64{1, 0.1}),
	}

	result := stage.Retrieve(context.Background(), "q", query, pool, 5, 0.5, false)

	seen := make(map[string]int)
	for _, sc := range result.Chunks {
		seen[sc.Chunk.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "chunk %s appears more than once", id)
	}
}

func TestRetrieve_MismatchSkippedAndCounted(t *testing.T) {
	stage := newStage(nil)
	query := []float64{1, 0}

	pool := []*memory.Chunk{
		chunk("good", []float64{1, 0}),
		chunk("bad", []float64{1, 0, 0}), // wrong dimension
	}

	result := stage.Retrieve(context.Background(), "q", query, pool, 10, 0.5, false)

	assert.Equal(t, 1, result.Mismatches)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "good", result.Chunks[0].Chunk.ID)

	// 1 of 2 chunks mismatched, well past the 10% degradation ratio.
	assert.Equal(t, retrieval.StatusDegraded, result.Status)
	assert.NotEmpty(t, result.Reason)
}

func TestRetrieve_FewMismatchesStayOK(t *testing.T) {
	stage := newStage(nil)
	query := []float64{1, 0}

	pool := make([]*memory.Chunk, 0, 21)
	for i := 0; i < 20; i++ {
		pool = append(pool, chunk(string(rune('a'+i)), []float64{1, 0}))
	}
	pool = append(pool, chunk("bad", []float64{1}))

	result := stage.Retrieve(context.Background(), "q", query, pool, 30, 0.5, false)

	assert.Equal(t, 1, result.Mismatches)
	assert.Equal(t, retrieval.StatusOK, result.Status)
}

func TestRetrieve_EmptyPool(t *testing.T) {
	stage := newStage(nil)

	result := stage.Retrieve(context.Background(), "q", []float64{1, 0}, nil, 10, 0.5, false)

	assert.Equal(t, retrieval.StatusOK, result.Status)
	assert.Empty(t, result.Chunks)
	assert.False(t, result.Partial)
}

func TestRetrieve_MissingEmbeddingFails(t *testing.T) {
	stage := newStage(nil)

	result := stage.Retrieve(context.Background(), "q", nil, []*memory.Chunk{chunk("a", []float64{1})}, 10, 0.5, false)

	assert.Equal(t, retrieval.StatusFailed, result.Status)
	assert.Empty(t, result.Chunks)
}

func TestRetrieve_ZeroLimit(t *testing.T) {
	stage := newStage(nil)

	result := stage.Retrieve(context.Background(), "q", []float64{1}, []*memory.Chunk{chunk("a", []float64{1})}, 0, 0.5, false)

	assert.Equal(t, retrieval.StatusOK, result.Status)
	assert.Empty(t, result.Chunks)
}

func TestRetrieve_CancelledContextReturnsPartial(t *testing.T) {
	stage := newStage(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := []*memory.Chunk{
		chunk("a", []float64{1, 0}),
		chunk("b", []float64{1, 0}),
	}

	result := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)

	assert.True(t, result.Partial)
	assert.Equal(t, retrieval.StatusDegraded, result.Status)
}

func TestRetrieve_CacheRoundTrip(t *testing.T) {
	resultCache := cache.NewMemoryCache(nil)
	defer resultCache.Close()
	stage := newStage(resultCache)
	ctx := context.Background()

	pool := []*memory.Chunk{chunk("a", []float64{1, 0})}

	first := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)
	require.False(t, first.FromCache)

	second := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)
	assert.True(t, second.FromCache)
	require.Len(t, second.Chunks, 1)
	assert.Equal(t, "a", second.Chunks[0].Chunk.ID)
}

func TestRetrieve_CacheHitsAreInsulated(t *testing.T) {
	resultCache := cache.NewMemoryCache(nil)
	defer resultCache.Close()
	stage := newStage(resultCache)
	ctx := context.Background()

	pool := []*memory.Chunk{chunk("a", []float64{1, 0})}

	first := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)
	require.Len(t, first.Chunks, 1)

	// Callers write score fields into the result; that must not leak into
	// the cached entry or into other callers' hits.
	first.Chunks[0].Salience = 0.123

	hit := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)
	require.True(t, hit.FromCache)
	require.Len(t, hit.Chunks, 1)
	assert.Zero(t, hit.Chunks[0].Salience)

	hit.Chunks[0].Salience = 0.456
	again := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)
	require.True(t, again.FromCache)
	assert.Zero(t, again.Chunks[0].Salience)
	assert.NotSame(t, hit.Chunks[0], again.Chunks[0])
}

func TestRetrieve_CacheBypass(t *testing.T) {
	resultCache := cache.NewMemoryCache(nil)
	defer resultCache.Close()
	stage := newStage(resultCache)
	ctx := context.Background()

	pool := []*memory.Chunk{chunk("a", []float64{1, 0})}

	_ = stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)
	bypassed := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, true)

	assert.False(t, bypassed.FromCache)
}

func TestRetrieve_PartialResultNotCached(t *testing.T) {
	resultCache := cache.NewMemoryCache(nil)
	defer resultCache.Close()
	stage := newStage(resultCache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := []*memory.Chunk{chunk("a", []float64{1, 0})}
	partial := stage.Retrieve(ctx, "q", []float64{1, 0}, pool, 10, 0.5, false)
	require.True(t, partial.Partial)

	// A later call with a live context must rescan, not serve the partial.
	fresh := stage.Retrieve(context.Background(), "q", []float64{1, 0}, pool, 10, 0.5, false)
	assert.False(t, fresh.FromCache)
	assert.Len(t, fresh.Chunks, 1)
}

func TestNewStage_DoesNotMutateCallerConfig(t *testing.T) {
	cfg := &retrieval.Config{OversampleFactor: 2}

	stage := retrieval.NewStage(memory.KindCode, nil, nil, cfg)
	require.NotNil(t, stage)

	assert.Equal(t, 2, cfg.OversampleFactor)
	assert.Zero(t, cfg.ExpansionSeeds)
	assert.Zero(t, cfg.ExpansionThreshold)
	assert.Zero(t, cfg.ExpansionLimit)
	assert.Zero(t, cfg.ExpansionDiscount)
	assert.Zero(t, cfg.MismatchDegradedRatio)
}
