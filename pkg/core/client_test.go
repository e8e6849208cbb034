package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/chunkstore"
	"github.com/recallhq/recall-go/pkg/core"
	"github.com/recallhq/recall-go/pkg/events"
	"github.com/recallhq/recall-go/pkg/memory"
)

// mockEmbedder returns canned vectors by exact text, falling back to a fixed
// vector for unknown inputs.
type mockEmbedder struct {
	vectors  map[string][]float64
	fallback []float64
	err      error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return m.fallback, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result := make([][]float64, 0, len(texts))
	for _, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

func (m *mockEmbedder) Dimensions() int { return len(m.fallback) }
func (m *mockEmbedder) Close() error    { return nil }

// captureSink records every emitted event.
type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Emit(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]events.Type, 0, len(s.events))
	for _, e := range s.events {
		result = append(result, e.Type)
	}
	return result
}

// slowStore blocks long enough for any short overall timeout to fire.
type slowStore struct {
	*chunkstore.MemoryStore
}

func (s *slowStore) GetAllChunks(ctx context.Context, kind memory.Kind) ([]*memory.Chunk, error) {
	time.Sleep(200 * time.Millisecond)
	return s.MemoryStore.GetAllChunks(ctx, kind)
}

// failStore refuses every pool load.
type failStore struct {
	*chunkstore.MemoryStore
}

func (s *failStore) GetAllChunks(ctx context.Context, kind memory.Kind) ([]*memory.Chunk, error) {
	return nil, fmt.Errorf("pool backend offline")
}

func testClient(t *testing.T, opts ...core.ClientOption) (*core.Client, *chunkstore.MemoryStore) {
	t.Helper()

	store, err := chunkstore.NewMemoryStore()
	require.NoError(t, err)

	defaults := []core.ClientOption{
		core.WithStore(store),
		core.WithEmbedder(&mockEmbedder{fallback: []float64{1, 0, 0}}),
	}
	client, err := core.NewClient(nil, append(defaults, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, store
}

func insert(t *testing.T, store *chunkstore.MemoryStore, kind memory.Kind, content string, embedding []float64) {
	t.Helper()
	_, err := store.Insert(context.Background(), &memory.Chunk{
		Content:   content,
		Embedding: embedding,
		Kind:      kind,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
}

func TestNewClient_RequiresStore(t *testing.T) {
	_, err := core.NewClient(nil, core.WithEmbedder(&mockEmbedder{fallback: []float64{1}}))
	assert.Error(t, err)
}

func TestRetrieveContext_EmptyQueryFails(t *testing.T) {
	client, _ := testClient(t)

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := client.RetrieveContext(context.Background(), query)
		assert.ErrorIs(t, err, core.ErrInvalidQuery)
	}
}

func TestRetrieveContext_ExactMatchRanksFirst(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "exact match content", []float64{1, 0, 0})
	insert(t, store, memory.KindCode, "close match content", []float64{0.95, 0.312, 0})

	bundle, err := client.RetrieveContext(context.Background(), "find the exact thing")
	require.NoError(t, err)
	require.True(t, bundle.HasContent())

	exactPos := strings.Index(bundle.Text, "exact match content")
	closePos := strings.Index(bundle.Text, "close match content")
	require.GreaterOrEqual(t, exactPos, 0)
	require.GreaterOrEqual(t, closePos, 0)
	assert.Less(t, exactPos, closePos, "the exact match must render before the close match")
}

func TestRetrieveContext_EmptyPoolsGiveNoContextBundle(t *testing.T) {
	client, _ := testClient(t)

	bundle, err := client.RetrieveContext(context.Background(), "anything at all")
	require.NoError(t, err)

	assert.False(t, bundle.HasContent())
	assert.Contains(t, bundle.Text, "No relevant context")
	assert.False(t, bundle.Metadata.Truncated)
	assert.Equal(t, "anything at all", bundle.Metadata.QueryEcho)
}

func TestRetrieveContext_ThresholdOverrideCanEmptyTheBundle(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "decent match", []float64{0.9, 0.436, 0})

	bundle, err := client.RetrieveContext(context.Background(), "query",
		core.WithSimilarityThreshold(0.99))
	require.NoError(t, err, "an empty result set is not an error")

	assert.False(t, bundle.HasContent())
	assert.Equal(t, 0.99, bundle.Metadata.ThresholdsUsed[memory.KindCode])
}

func TestRetrieveContext_WithKindsRestricts(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "code content", []float64{1, 0, 0})
	insert(t, store, memory.KindConversation, "conversation content", []float64{1, 0, 0})

	bundle, err := client.RetrieveContext(context.Background(), "query",
		core.WithKinds(memory.KindConversation))
	require.NoError(t, err)

	require.Len(t, bundle.Sections, 1)
	assert.Equal(t, memory.KindConversation, bundle.Sections[0].Kind)
	assert.NotContains(t, bundle.Text, "code content")
}

func TestRetrieveContext_MaxItemsClampsSection(t *testing.T) {
	client, store := testClient(t)

	for i := 0; i < 5; i++ {
		insert(t, store, memory.KindCode, fmt.Sprintf("match number %d", i), []float64{1, 0, 0})
	}

	bundle, err := client.RetrieveContext(context.Background(), "query",
		core.WithMaxItems(memory.KindCode, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, bundle.Metadata.PerKindCounts[memory.KindCode])
}

func TestRetrieveContext_TimeoutYieldsTruncatedBundle(t *testing.T) {
	base, err := chunkstore.NewMemoryStore()
	require.NoError(t, err)

	client, err := core.NewClient(nil,
		core.WithStore(&slowStore{MemoryStore: base}),
		core.WithEmbedder(&mockEmbedder{fallback: []float64{1, 0, 0}}),
	)
	require.NoError(t, err)
	defer client.Close()

	bundle, err := client.RetrieveContext(context.Background(), "query",
		core.WithTimeoutMs(1))
	require.NoError(t, err, "a timeout degrades the bundle, it never fails the call")

	assert.True(t, bundle.Metadata.Truncated)
	assert.False(t, bundle.HasContent())
}

func TestRetrieveContext_FailedPoolDegradesSection(t *testing.T) {
	base, err := chunkstore.NewMemoryStore()
	require.NoError(t, err)

	client, err := core.NewClient(nil,
		core.WithStore(&failStore{MemoryStore: base}),
		core.WithEmbedder(&mockEmbedder{fallback: []float64{1, 0, 0}}),
	)
	require.NoError(t, err)
	defer client.Close()

	bundle, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	assert.NotEmpty(t, bundle.Metadata.Degraded)
	for _, section := range bundle.Sections {
		assert.False(t, section.Available)
		assert.Contains(t, section.FormattedText, "unavailable")
	}
}

func TestRetrieveContext_EmbedderFailureDegrades(t *testing.T) {
	store, err := chunkstore.NewMemoryStore()
	require.NoError(t, err)

	client, err := core.NewClient(nil,
		core.WithStore(store),
		core.WithEmbedder(&mockEmbedder{err: errors.New("provider down")}),
	)
	require.NoError(t, err)
	defer client.Close()

	insert(t, store, memory.KindCode, "unreachable content", []float64{1, 0, 0})

	bundle, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	assert.False(t, bundle.HasContent())
	assert.NotEmpty(t, bundle.Metadata.Degraded)
}

func TestRetrieveContext_SecondCallHitsCache(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "cached content", []float64{1, 0, 0})

	_, err := client.RetrieveContext(context.Background(), "repeated query")
	require.NoError(t, err)
	require.Zero(t, client.CacheStats().Hits)

	_, err = client.RetrieveContext(context.Background(), "repeated query")
	require.NoError(t, err)

	assert.Positive(t, client.CacheStats().Hits)
}

func TestNewClient_NilCacheDisablesCaching(t *testing.T) {
	client, store := testClient(t, core.WithCache(nil))

	insert(t, store, memory.KindCode, "cached content", []float64{1, 0, 0})

	_, err := client.RetrieveContext(context.Background(), "repeated query")
	require.NoError(t, err)
	_, err = client.RetrieveContext(context.Background(), "repeated query")
	require.NoError(t, err)

	stats := client.CacheStats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestRetrieveContext_ConcurrentCacheHits(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "find the chunk", []float64{1, 0, 0})
	insert(t, store, memory.KindConversation, "we discussed the chunk", []float64{0.9, 0.436, 0})

	// Prime the cache, then hammer the same query from several goroutines.
	// Cached entries must not share score state across calls; run with the
	// race detector enabled.
	reference, err := client.RetrieveContext(context.Background(), "find the chunk")
	require.NoError(t, err)

	var wg sync.WaitGroup
	bundles := make([]*core.ContextBundle, 4)
	retrieveErrs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bundles[i], retrieveErrs[i] = client.RetrieveContext(context.Background(), "find the chunk")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		require.NoError(t, retrieveErrs[i])
		require.Len(t, bundles[i].Sections, len(reference.Sections))
		for j := range reference.Sections {
			assert.Equal(t, reference.Sections[j].Kind, bundles[i].Sections[j].Kind)
			assert.Equal(t, reference.Sections[j].FormattedText, bundles[i].Sections[j].FormattedText)
		}
	}
}

func TestRetrieveContext_CacheBypassSkipsLookup(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "cached content", []float64{1, 0, 0})

	_, err := client.RetrieveContext(context.Background(), "repeated query")
	require.NoError(t, err)

	_, err = client.RetrieveContext(context.Background(), "repeated query", core.WithCacheBypass())
	require.NoError(t, err)

	assert.Zero(t, client.CacheStats().Hits)
}

func TestRetrieveContext_Deterministic(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "alpha content", []float64{1, 0, 0})
	insert(t, store, memory.KindCode, "beta content", []float64{0.9, 0.436, 0})
	insert(t, store, memory.KindConversation, "gamma content", []float64{0.8, 0.6, 0})

	first, err := client.RetrieveContext(context.Background(), "query", core.WithCacheBypass())
	require.NoError(t, err)
	second, err := client.RetrieveContext(context.Background(), "query", core.WithCacheBypass())
	require.NoError(t, err)

	require.Len(t, second.Sections, len(first.Sections))
	for i := range first.Sections {
		assert.Equal(t, first.Sections[i].Kind, second.Sections[i].Kind)
		assert.Equal(t, first.Sections[i].FormattedText, second.Sections[i].FormattedText)
	}
}

func TestRetrieveContext_EmitsLifecycleEvents(t *testing.T) {
	sink := &captureSink{}
	client, store := testClient(t, core.WithSink(sink))

	insert(t, store, memory.KindCode, "content", []float64{1, 0, 0})

	_, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	types := sink.types()
	assert.Contains(t, types, events.TypeRetrievalStarted)
	assert.Contains(t, types, events.TypeRetrievalCompleted)
	assert.Contains(t, types, events.TypeCacheMiss)
}

func TestAddChunk_EmbedsContent(t *testing.T) {
	client, store := testClient(t)
	ctx := context.Background()

	chunk, err := client.AddChunk(ctx, &memory.Chunk{
		Content: "freshly stored content",
		Kind:    memory.KindNarrative,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, chunk.ID)
	assert.Equal(t, []float64{1, 0, 0}, chunk.Embedding)

	count, err := store.Count(ctx, memory.KindNarrative)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddChunk_RejectsEmptyContent(t *testing.T) {
	client, _ := testClient(t)

	_, err := client.AddChunk(context.Background(), &memory.Chunk{Kind: memory.KindCode})
	assert.Error(t, err)
}

func TestAddChunk_RejectsUnknownKind(t *testing.T) {
	client, _ := testClient(t)

	_, err := client.AddChunk(context.Background(), &memory.Chunk{
		Content: "content",
		Kind:    memory.Kind("mystery"),
	})
	assert.Error(t, err)
}
