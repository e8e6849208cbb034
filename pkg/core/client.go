package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recallhq/recall-go/pkg/analyzer"
	"github.com/recallhq/recall-go/pkg/analyzer/heuristic"
	"github.com/recallhq/recall-go/pkg/budget"
	"github.com/recallhq/recall-go/pkg/cache"
	sqliteCache "github.com/recallhq/recall-go/pkg/cache/sqlite"
	"github.com/recallhq/recall-go/pkg/chunkstore"
	"github.com/recallhq/recall-go/pkg/embedder"
	openaiEmbedder "github.com/recallhq/recall-go/pkg/embedder/openai"
	"github.com/recallhq/recall-go/pkg/events"
	"github.com/recallhq/recall-go/pkg/fingerprint"
	"github.com/recallhq/recall-go/pkg/memory"
	"github.com/recallhq/recall-go/pkg/retrieval"
	"github.com/recallhq/recall-go/pkg/salience"
)

// Client is the retrieval pipeline entry point.
//
// One RetrieveContext call runs query analysis, budget allocation, one
// embedding call, concurrent per-kind retrieval, salience ranking, cross-kind
// deduplication, and bundle assembly. Branch failures and timeouts degrade
// the bundle instead of failing the call; only an invalid query returns an
// error.
//
// The client is safe for concurrent use from multiple goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	bundle, _ := client.RetrieveContext(ctx, "how does the session cache evict entries?",
//	    core.WithMaxItems(memory.KindCode, 8),
//	)
//	fmt.Println(bundle.Text)
type Client struct {
	// config contains the client configuration.
	config *Config

	// embedder generates the query embedding, once per call.
	embedder embedder.Provider

	// store is the chunk pool backend.
	store chunkstore.Store

	// resultCache caches branch results keyed by query, kind, limit, and
	// threshold. Nil disables caching.
	resultCache cache.Cache

	// cacheInjected records that WithCache was applied, so a nil cache
	// means caching is disabled rather than unset.
	cacheInjected bool

	// analyzer classifies query complexity, type, and domain relevance.
	analyzer analyzer.Analyzer

	// sink receives pipeline lifecycle events.
	sink events.Sink

	// allocator derives per-kind budgets from query analysis.
	allocator *budget.Allocator

	// scorer computes composite salience for ranked results.
	scorer *salience.Scorer

	// deduper removes cross-kind near duplicates.
	deduper *fingerprint.Deduper

	// stages run retrieval per kind.
	stages map[memory.Kind]*retrieval.Stage
}

// ClientOption injects a collaborator, replacing the one the configuration
// would construct.
type ClientOption func(*Client)

// WithEmbedder injects an embedding provider.
func WithEmbedder(p embedder.Provider) ClientOption {
	return func(c *Client) { c.embedder = p }
}

// WithStore injects a chunk store.
func WithStore(s chunkstore.Store) ClientOption {
	return func(c *Client) { c.store = s }
}

// WithCache injects a result cache. Pass nil to disable caching.
func WithCache(rc cache.Cache) ClientOption {
	return func(c *Client) {
		c.resultCache = rc
		c.cacheInjected = true
	}
}

// WithAnalyzer injects a query analyzer.
func WithAnalyzer(a analyzer.Analyzer) ClientOption {
	return func(c *Client) { c.analyzer = a }
}

// WithSink injects an event sink.
func WithSink(s events.Sink) ClientOption {
	return func(c *Client) { c.sink = s }
}

// NewClient creates a retrieval client.
//
// Collaborators not injected through options are built from the
// configuration: an OpenAI embedding provider, a heuristic query analyzer, a
// no-op event sink, and the configured cache backend. The chunk store has no
// config-driven default and must be injected with WithStore.
//
// Parameters:
//   - cfg: Configuration (nil uses defaults throughout)
//   - opts: Collaborator injections
//
// Returns a new Client instance, or an error if initialization fails.
//
// Example:
//
//	store, _ := sqliteStore.New(&sqliteStore.Config{DBPath: "./chunks.db"})
//	client, err := core.NewClient(config, core.WithStore(store))
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.embedder == nil {
		provider, err := initEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
		c.embedder = provider
	}
	if c.store == nil {
		return nil, NewRetrievalError("NewClient", fmt.Errorf("no chunk store configured"))
	}
	if c.analyzer == nil {
		c.analyzer = heuristic.New(nil)
	}
	if c.sink == nil {
		c.sink = events.NopSink{}
	}

	if c.resultCache == nil && !c.cacheInjected {
		rc, err := initCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		c.resultCache = rc
	}

	c.allocator = budget.NewAllocator(cfg.allocatorConfig())
	c.scorer = salience.NewScorer(cfg.scorerConfig())
	c.deduper = cfg.deduper()

	c.stages = make(map[memory.Kind]*retrieval.Stage, len(memory.AllKinds()))
	for _, kind := range memory.AllKinds() {
		c.stages[kind] = retrieval.NewStage(kind, c.resultCache, c.sink, cfg.stageConfig())
	}

	return c, nil
}

// initEmbedder builds the embedding provider from configuration.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, NewRetrievalError("NewClient", fmt.Errorf("unsupported embedding provider: %s", cfg.Provider))
	}
}

// initCache builds the result cache from configuration.
func initCache(cfg CacheConfig) (cache.Cache, error) {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute

	switch cfg.Provider {
	case "", "memory":
		return cache.NewMemoryCache(&cache.MemoryCacheConfig{
			TTL:        ttl,
			MaxEntries: cfg.MaxEntries,
		}), nil
	case "sqlite":
		return sqliteCache.New(&sqliteCache.Config{
			DBPath: cfg.DBPath,
			TTL:    ttl,
		})
	case "none":
		return nil, nil
	default:
		return nil, NewRetrievalError("NewClient", fmt.Errorf("unsupported cache provider: %s", cfg.Provider))
	}
}

// RetrieveContext retrieves and assembles context for a query.
//
// The pipeline stages run in order: validate, analyze, allocate, embed once,
// fan out one retrieval branch per kind, rank by salience, deduplicate across
// kinds, assemble. Branches run concurrently under per-kind timeouts derived
// from the overall timeout; a branch that fails or runs out of time degrades
// its section and the call still returns a bundle.
//
// Identical inputs produce identical bundles: analysis and allocation are
// deterministic, ranking ties break stably, and the reference time for
// recency is taken once per call.
//
// Parameters:
//   - ctx: Context for cancellation; the overall timeout is layered on top
//   - query: Natural-language query text
//   - opts: Per-call overrides
//
// Returns the assembled bundle. The only error is an invalid (empty) query;
// every other failure is reported in the bundle metadata.
func (c *Client) RetrieveContext(ctx context.Context, query string, opts ...RetrieveOption) (*ContextBundle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewRetrievalError("RetrieveContext", ErrInvalidQuery)
	}

	options := &retrieveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	start := time.Now()
	c.sink.Emit(events.New(events.TypeRetrievalStarted, "", map[string]interface{}{
		"query_length": len(query),
	}))

	// Analysis failures fall back to a neutral medium-complexity profile;
	// a broken analyzer must not block retrieval.
	analysis, err := c.analyzer.Analyze(ctx, query)
	if err != nil || analysis == nil {
		analysis = analyzer.Default(query)
	}

	b := c.allocator.Allocate(analysis, &budget.Overrides{
		Limits:         options.limits,
		Threshold:      options.thresholdOverride,
		OverallTimeout: time.Duration(options.timeoutMs) * time.Millisecond,
	})

	overallCtx, cancel := context.WithTimeout(ctx, b.OverallTimeout)
	defer cancel()

	// One embedding per call, shared by every branch. A failed embed
	// degrades every branch to empty rather than failing the call.
	queryEmbedding, err := c.embedder.Embed(overallCtx, query)
	if err != nil {
		queryEmbedding = nil
		c.sink.Emit(events.New(events.TypeRetrievalError, "", map[string]interface{}{
			"error": NewRetrievalError("Embed", ErrEmbeddingUnavailable).Error(),
		}))
	}

	kinds := options.kinds()
	results := c.fanOut(overallCtx, kinds, query, queryEmbedding, b, options.bypassCache)

	now := time.Now()
	sections := make(map[memory.Kind][]*memory.ScoredChunk, len(results))
	for kind, result := range results {
		sections[kind] = c.scorer.ScoreAll(result.Chunks, now)
	}

	// Cross-kind dedup runs before the final clamp so unique lower-ranked
	// items can fill slots freed by removed duplicates.
	deduped := c.deduper.Dedupe(sections)
	for kind, chunks := range deduped {
		if limit := b.PerKindLimit[kind]; len(chunks) > limit {
			deduped[kind] = chunks[:limit]
		}
	}

	bundle := assemble(query, kinds, deduped, results, b, time.Since(start))

	eventType := events.TypeRetrievalCompleted
	if bundle.Metadata.Truncated {
		eventType = events.TypeRetrievalTimedOut
	}
	c.sink.Emit(events.New(eventType, "", map[string]interface{}{
		"elapsed_ms": bundle.Metadata.ElapsedMs,
		"truncated":  bundle.Metadata.Truncated,
	}))

	return bundle, nil
}

// fanOut runs one retrieval branch per kind and joins them.
//
// Each branch loads its pool and scans under its own timeout, a child of the
// overall context. Branches report through a buffered channel so a slow
// branch never blocks a finished one. If the overall context fires before
// every branch reports, the missing kinds are filled in as timed-out
// failures and whatever already arrived is kept.
func (c *Client) fanOut(ctx context.Context, kinds []memory.Kind, query string, queryEmbedding []float64, b *budget.Budget, bypassCache bool) map[memory.Kind]*retrieval.Result {
	resultCh := make(chan *retrieval.Result, len(kinds))

	for _, kind := range kinds {
		go func(kind memory.Kind) {
			branchCtx, cancel := context.WithTimeout(ctx, b.PerBranchTimeout[kind])
			defer cancel()

			pool, err := c.store.GetAllChunks(branchCtx, kind)
			if err != nil {
				resultCh <- &retrieval.Result{
					Kind:   kind,
					Status: retrieval.StatusFailed,
					Reason: NewRetrievalError("GetAllChunks", ErrPoolUnavailable).Error(),
				}
				return
			}

			resultCh <- c.stages[kind].Retrieve(branchCtx, query, queryEmbedding,
				pool, b.PerKindLimit[kind], b.SimilarityThreshold[kind], bypassCache)
		}(kind)
	}

	results := make(map[memory.Kind]*retrieval.Result, len(kinds))
	for range kinds {
		select {
		case r := <-resultCh:
			results[r.Kind] = r
		case <-ctx.Done():
			for _, kind := range kinds {
				if _, ok := results[kind]; !ok {
					results[kind] = &retrieval.Result{
						Kind:    kind,
						Status:  retrieval.StatusFailed,
						Partial: true,
						Reason:  ErrTimeout.Error(),
					}
				}
			}
			return results
		}
	}

	return results
}

// AddChunk stores a chunk in the chunk pool, embedding its content first
// when no embedding is attached.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - chunk: The chunk to store; an empty ID is filled with a generated one
//
// Returns the stored chunk.
func (c *Client) AddChunk(ctx context.Context, chunk *memory.Chunk) (*memory.Chunk, error) {
	if chunk == nil || strings.TrimSpace(chunk.Content) == "" {
		return nil, NewRetrievalError("AddChunk", fmt.Errorf("empty chunk content"))
	}
	if !chunk.Kind.Valid() {
		return nil, NewRetrievalError("AddChunk", fmt.Errorf("unknown kind: %s", chunk.Kind))
	}

	if len(chunk.Embedding) == 0 {
		embedding, err := c.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return nil, NewRetrievalError("AddChunk", err)
		}
		chunk.Embedding = embedding
	}
	if chunk.Timestamp.IsZero() {
		chunk.Timestamp = time.Now()
	}

	return c.store.Insert(ctx, chunk)
}

// GetChunk retrieves a chunk by ID.
func (c *Client) GetChunk(ctx context.Context, id string) (*memory.Chunk, error) {
	return c.store.Get(ctx, id)
}

// DeleteChunk removes a chunk by ID.
func (c *Client) DeleteChunk(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// CountChunks returns the number of stored chunks of the given kind.
func (c *Client) CountChunks(ctx context.Context, kind memory.Kind) (int, error) {
	return c.store.Count(ctx, kind)
}

// CacheStats returns the result cache counters. Returns zero stats when
// caching is disabled.
func (c *Client) CacheStats() cache.Stats {
	if c.resultCache == nil {
		return cache.Stats{}
	}
	return c.resultCache.Stats()
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	var firstErr error
	if c.resultCache != nil {
		if err := c.resultCache.Close(); err != nil {
			firstErr = err
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
