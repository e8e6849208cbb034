package core_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/memory"
)

func TestBundle_CodeRendersFencedWithLanguage(t *testing.T) {
	client, store := testClient(t)

	_, err := store.Insert(context.Background(), &memory.Chunk{
		Content:   "func Evict() { cache.Sweep() }",
		Embedding: []float64{1, 0, 0},
		Metadata:  map[string]interface{}{"language": "go"},
		Kind:      memory.KindCode,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	bundle, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	assert.Contains(t, bundle.Text, "```go\n")
	assert.Contains(t, bundle.Text, "func Evict() { cache.Sweep() }")
}

func TestBundle_ConversationRendersTimestamp(t *testing.T) {
	client, store := testClient(t)

	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	_, err := store.Insert(context.Background(), &memory.Chunk{
		Content:   "we agreed to ship on friday",
		Embedding: []float64{1, 0, 0},
		Kind:      memory.KindConversation,
		Timestamp: ts,
	})
	require.NoError(t, err)

	bundle, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	assert.Contains(t, bundle.Text, "2026-03-14 09:30")
	assert.Contains(t, bundle.Text, "we agreed to ship on friday")
}

func TestBundle_NonEmptyBundleCarriesInstructions(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "some matching content", []float64{1, 0, 0})

	bundle, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	assert.Contains(t, bundle.Text, "Use the context above")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(bundle.Text), "."),
		"instructions close the bundle")
}

func TestBundle_SectionsOrderedByMeanSalience(t *testing.T) {
	client, store := testClient(t)

	// Conversation content matches the query much better than code content,
	// so its section must come first despite code's higher dedup precedence.
	insert(t, store, memory.KindCode, "weak code match", []float64{0.72, 0.694, 0})
	insert(t, store, memory.KindConversation, "strong conversation match", []float64{1, 0, 0})

	bundle, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	require.NotEmpty(t, bundle.Sections)
	assert.Equal(t, memory.KindConversation, bundle.Sections[0].Kind)
}

func TestBundle_CrossKindDuplicateDropped(t *testing.T) {
	client, store := testClient(t)

	insert(t, store, memory.KindCode, "the cache evicts the oldest entry first", []float64{1, 0, 0})
	insert(t, store, memory.KindNarrative, "The cache evicts the oldest entry first.", []float64{1, 0, 0})

	bundle, err := client.RetrieveContext(context.Background(), "query")
	require.NoError(t, err)

	assert.Equal(t, 1, bundle.Metadata.PerKindCounts[memory.KindCode])
	assert.Equal(t, 0, bundle.Metadata.PerKindCounts[memory.KindNarrative])
}
