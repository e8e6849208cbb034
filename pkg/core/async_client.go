package core

import (
	"context"
	"sync"

	"github.com/recallhq/recall-go/pkg/memory"
)

// AsyncClient provides asynchronous retrieval operations.
//
// It wraps the synchronous Client and executes operations in separate
// goroutines, returning channels that receive the results when operations
// complete. The client tracks all goroutines and provides Wait() to ensure
// all in-flight operations finish.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(config, core.WithStore(store))
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.RetrieveContextAsync(ctx, "how is auth wired?")
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// BundleResult carries the outcome of an asynchronous retrieval.
type BundleResult struct {
	// Bundle is the assembled context bundle, nil on error.
	Bundle *ContextBundle

	// Error is the operation error, if any.
	Error error
}

// ChunkResult carries the outcome of an asynchronous chunk write.
type ChunkResult struct {
	// Chunk is the stored chunk, nil on error.
	Chunk *memory.Chunk

	// Error is the operation error, if any.
	Error error
}

// NewAsyncClient creates an asynchronous retrieval client.
//
// Parameters:
//   - cfg: Configuration
//   - opts: Collaborator injections, same as NewClient
//
// Returns the asynchronous client instance, or an error if initialization
// fails.
func NewAsyncClient(cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &AsyncClient{Client: client}, nil
}

// RetrieveContextAsync retrieves context asynchronously.
//
// The operation executes in a separate goroutine and reports through the
// returned channel, which is buffered and closed after the single result.
func (ac *AsyncClient) RetrieveContextAsync(ctx context.Context, query string, opts ...RetrieveOption) <-chan *BundleResult {
	resultChan := make(chan *BundleResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		bundle, err := ac.RetrieveContext(ctx, query, opts...)
		resultChan <- &BundleResult{Bundle: bundle, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// AddChunkAsync stores a chunk asynchronously.
func (ac *AsyncClient) AddChunkAsync(ctx context.Context, chunk *memory.Chunk) <-chan *ChunkResult {
	resultChan := make(chan *ChunkResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		stored, err := ac.AddChunk(ctx, chunk)
		resultChan <- &ChunkResult{Chunk: stored, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all in-flight asynchronous operations complete.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for in-flight operations and closes the underlying client.
func (ac *AsyncClient) Close() error {
	ac.wg.Wait()
	return ac.Client.Close()
}
