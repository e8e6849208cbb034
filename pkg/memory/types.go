// Package memory defines the chunk types shared by every stage of the
// retrieval pipeline.
//
// A chunk is a unit of previously stored text with an associated embedding
// vector. Chunks are produced by external stores (a code index, a conversation
// store, a narrative store) and are read-only for the lifetime of a retrieval
// call; the pipeline never mutates or persists them.
package memory

import "time"

// Kind identifies which memory pool a chunk belongs to.
//
// Kinds matter in two places: the budget allocator hands out per-kind item
// limits and similarity thresholds, and the deduplicator resolves cross-kind
// duplicates by a fixed precedence order (Code > Conversation > Narrative).
type Kind string

const (
	// KindCode identifies chunks taken from indexed source code.
	KindCode Kind = "code"

	// KindConversation identifies chunks taken from past conversations.
	KindConversation Kind = "conversation"

	// KindNarrative identifies chunks taken from narrative summaries.
	KindNarrative Kind = "narrative"
)

// AllKinds returns every memory kind in precedence order (highest first).
//
// The order is significant: the deduplicator keeps the entry from the
// earlier kind when near-identical content appears in two kinds.
func AllKinds() []Kind {
	return []Kind{KindCode, KindConversation, KindNarrative}
}

// Valid reports whether k is a known memory kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCode, KindConversation, KindNarrative:
		return true
	}
	return false
}

// Precedence returns the dedup precedence rank of the kind.
// Lower values win duplicate conflicts.
func (k Kind) Precedence() int {
	switch k {
	case KindCode:
		return 0
	case KindConversation:
		return 1
	case KindNarrative:
		return 2
	}
	return 3
}

// Chunk is a unit of previously stored text with its embedding vector.
//
// Chunks are immutable once created and are owned by whichever store produced
// them. Callers must not mutate a chunk while a retrieval call is in flight;
// this is a documented precondition, not something the pipeline enforces with
// locks.
//
// Example:
//
//	chunk := &memory.Chunk{
//	    ID:        "code_001",
//	    Content:   "func Login(user string) error { ... }",
//	    Embedding: []float64{0.12, -0.33, ...},
//	    Kind:      memory.KindCode,
//	    Timestamp: time.Now(),
//	}
type Chunk struct {
	// ID is the unique identifier of the chunk within its store.
	ID string `json:"id"`

	// Content is the text content of the chunk.
	Content string `json:"content"`

	// Embedding is the vector embedding used for similarity search.
	// Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"embedding,omitempty"`

	// Metadata contains additional structured information about the chunk,
	// such as a language tag for code or a topic for conversations.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Kind identifies which memory pool the chunk belongs to.
	Kind Kind `json:"kind"`

	// Timestamp is when the underlying content was recorded.
	// It drives the recency component of the salience score.
	Timestamp time.Time `json:"timestamp"`
}

// ScoredChunk wraps a Chunk with the scores computed during one retrieval
// call. ScoredChunks are discarded after the call that produced them.
type ScoredChunk struct {
	// Chunk is the underlying memory chunk. Never nil.
	Chunk *Chunk `json:"chunk"`

	// Similarity is the cosine similarity to the query (or, for expansion
	// results, the discounted similarity to the match that pulled them in).
	// Range: -1.0 to 1.0.
	Similarity float64 `json:"similarity"`

	// RecencyScore is the exponential-decay recency component (0.0-1.0).
	RecencyScore float64 `json:"recency_score"`

	// DomainScore is the vocabulary-match relevance component (0.0-1.0).
	DomainScore float64 `json:"domain_score"`

	// Salience is the weighted composite of similarity, recency, and domain
	// relevance. It is the final ranking key.
	Salience float64 `json:"salience"`

	// RelatedTo holds the ID of the direct match that pulled this chunk in
	// during local expansion. Empty for direct query matches.
	RelatedTo string `json:"related_to,omitempty"`
}

// CloneScored returns a slice of copies of the given scored chunks. The
// underlying Chunk pointers are shared; chunks are read-only during
// retrieval, while the score fields are written per call and must not be
// shared across calls.
func CloneScored(chunks []*ScoredChunk) []*ScoredChunk {
	if chunks == nil {
		return nil
	}
	clones := make([]*ScoredChunk, len(chunks))
	for i, chunk := range chunks {
		clone := *chunk
		clones[i] = &clone
	}
	return clones
}
