package chunkstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/recallhq/recall-go/pkg/memory"
)

// MemoryStore is an in-process chunk store for tests and small pools.
//
// GetAllChunks returns chunks in stable insertion order, which keeps
// retrieval deterministic for identical inputs.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]*memory.Chunk
	order  []string

	node *snowflake.Node
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() (*MemoryStore, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: %w", err)
	}
	return &MemoryStore{
		chunks: make(map[string]*memory.Chunk),
		node:   node,
	}, nil
}

// Insert stores a chunk, generating an ID and timestamp when missing.
func (s *MemoryStore) Insert(ctx context.Context, chunk *memory.Chunk) (*memory.Chunk, error) {
	if chunk == nil {
		return nil, fmt.Errorf("chunkstore: nil chunk")
	}
	if chunk.ID == "" {
		chunk.ID = s.node.Generate().String()
	}
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chunks[chunk.ID]; !exists {
		s.order = append(s.order, chunk.ID)
	}
	s.chunks[chunk.ID] = chunk
	return chunk, nil
}

// GetAllChunks returns every chunk of the given kind in insertion order.
func (s *MemoryStore) GetAllChunks(ctx context.Context, kind memory.Kind) ([]*memory.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*memory.Chunk
	for _, id := range s.order {
		chunk := s.chunks[id]
		if chunk != nil && chunk.Kind == kind {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// Get retrieves a chunk by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*memory.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunkstore: chunk %s not found", id)
	}
	return chunk, nil
}

// Delete removes a chunk by ID. Deleting an absent ID is not an error.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[id]; !ok {
		return nil
	}
	delete(s.chunks, id)

	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of chunks of the given kind.
func (s *MemoryStore) Count(ctx context.Context, kind memory.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, chunk := range s.chunks {
		if chunk.Kind == kind {
			count++
		}
	}
	return count, nil
}

// Close drops all chunks.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]*memory.Chunk)
	s.order = nil
	return nil
}
