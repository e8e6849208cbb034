// Package chunkstore provides interfaces and implementations for chunk pool
// storage backends.
//
// A chunk store owns the memory chunks of one or more kinds and hands the
// pipeline a point-in-time consistent pool per retrieval call. Stores also
// expose a small write surface (Insert/Delete) so pools can be maintained;
// the retrieval pipeline itself only ever reads.
package chunkstore

import (
	"context"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Store defines the interface for chunk pool backends.
//
// All implementations (in-memory, SQLite, PostgreSQL, MySQL) must satisfy
// this interface. GetAllChunks is assumed point-in-time consistent for the
// duration of one retrieval call.
type Store interface {
	// Insert stores a chunk. An empty chunk ID is filled with a generated
	// one; the stored chunk is returned.
	Insert(ctx context.Context, chunk *memory.Chunk) (*memory.Chunk, error)

	// GetAllChunks returns every chunk of the given kind.
	GetAllChunks(ctx context.Context, kind memory.Kind) ([]*memory.Chunk, error)

	// Get retrieves a chunk by ID.
	Get(ctx context.Context, id string) (*memory.Chunk, error)

	// Delete removes a chunk by ID.
	Delete(ctx context.Context, id string) error

	// Count returns the number of chunks of the given kind.
	Count(ctx context.Context, kind memory.Kind) (int, error)

	// Close closes the store and releases resources.
	Close() error
}
