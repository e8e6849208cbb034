// Package retrieval implements one kind-scoped retrieval branch: semantic
// search over a chunk pool followed by local expansion around the best
// matches.
//
// A stage is an independently schedulable, cancelable unit of work. Running
// out of time is not a failure: the stage returns whatever it has scored so
// far, flagged partial, and the orchestrator assembles the bundle from
// partial branches. Cancellation is checked between chunk comparisons so a
// huge pool cannot delay it indefinitely.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/recallhq/recall-go/pkg/cache"
	"github.com/recallhq/recall-go/pkg/events"
	"github.com/recallhq/recall-go/pkg/memory"
	"github.com/recallhq/recall-go/pkg/similarity"
)

// Status tags the outcome of one branch.
type Status string

const (
	// StatusOK marks a branch that completed normally.
	StatusOK Status = "ok"

	// StatusDegraded marks a branch that produced usable but reduced-quality
	// results (partial scan, high mismatch rate).
	StatusDegraded Status = "degraded"

	// StatusFailed marks a branch that produced nothing (pool or embedding
	// unavailable). A failed branch never aborts the overall call.
	StatusFailed Status = "failed"
)

// Result is the tagged outcome of one retrieval branch.
type Result struct {
	// Kind is the memory kind the branch was scoped to.
	Kind memory.Kind

	// Chunks are the scored results, sorted by descending similarity.
	// Salience is filled in later by the orchestrator's ranking pass.
	Chunks []*memory.ScoredChunk

	// Status tags the outcome.
	Status Status

	// Reason explains a degraded or failed status.
	Reason string

	// Partial reports that the branch stopped early on timeout or
	// cancellation. Partial results are valid and expected under load.
	Partial bool

	// Mismatches counts chunks skipped for embedding dimension mismatch.
	Mismatches int

	// FromCache reports that the branch was served from the result cache.
	FromCache bool
}

// Config is the tuning surface of a retrieval stage.
type Config struct {
	// OversampleFactor multiplies the per-kind limit to size the candidate
	// superset kept for later ranking. Default: 3.
	OversampleFactor int

	// ExpansionSeeds is how many top matches seed local expansion.
	// Default: 3.
	ExpansionSeeds int

	// ExpansionThreshold is the similarity a chunk must reach to a seed
	// match (not the query) to be pulled in as related. Default: 0.5.
	ExpansionThreshold float64

	// ExpansionLimit is the maximum related chunks added per seed.
	// Default: 5.
	ExpansionLimit int

	// ExpansionDiscount scales the similarity of expansion results so
	// direct hits always outrank expansions of equal raw similarity.
	// Default: 0.8.
	ExpansionDiscount float64

	// MismatchDegradedRatio is the fraction of dimension-mismatched chunks
	// past which the branch reports degraded quality. Default: 0.10.
	MismatchDegradedRatio float64
}

// DefaultConfig returns the default stage tuning.
func DefaultConfig() *Config {
	return &Config{
		OversampleFactor:      3,
		ExpansionSeeds:        3,
		ExpansionThreshold:    0.5,
		ExpansionLimit:        5,
		ExpansionDiscount:     0.8,
		MismatchDegradedRatio: 0.10,
	}
}

// Stage runs retrieval for one memory kind.
//
// The stage itself is stateless between calls; the result cache is the only
// shared state it touches.
type Stage struct {
	kind   memory.Kind
	cache  cache.Cache
	sink   events.Sink
	config *Config
}

// NewStage creates a retrieval stage for one kind.
//
// Parameters:
//   - kind: The memory kind this stage is scoped to
//   - resultCache: Result cache consulted before scanning (nil disables caching)
//   - sink: Event sink for cache lifecycle events (nil uses a no-op sink)
//   - cfg: Stage tuning (nil uses DefaultConfig)
func NewStage(kind memory.Kind, resultCache cache.Cache, sink events.Sink, cfg *Config) *Stage {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		// Default onto a copy; the caller keeps ownership of its struct.
		clone := *cfg
		cfg = &clone
	}
	if cfg.OversampleFactor <= 0 {
		cfg.OversampleFactor = 3
	}
	if cfg.ExpansionSeeds <= 0 {
		cfg.ExpansionSeeds = 3
	}
	if cfg.ExpansionThreshold <= 0 {
		cfg.ExpansionThreshold = 0.5
	}
	if cfg.ExpansionLimit <= 0 {
		cfg.ExpansionLimit = 5
	}
	if cfg.ExpansionDiscount <= 0 {
		cfg.ExpansionDiscount = 0.8
	}
	if cfg.MismatchDegradedRatio <= 0 {
		cfg.MismatchDegradedRatio = 0.10
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Stage{kind: kind, cache: resultCache, sink: sink, config: cfg}
}

// Retrieve runs the branch: cache lookup, similarity scan, threshold filter,
// oversampled top-k, local expansion.
//
// The context carries the branch's timeout; when it fires mid-scan the
// result so far is returned with Partial set rather than an error. An empty
// pool or zero survivors above the threshold is not an error either: the
// result is simply empty and the assembler renders the kind's fallback
// section.
//
// Parameters:
//   - ctx: Context carrying the per-branch timeout and the call's
//     cancellation signal
//   - queryText: Raw query text (cache key component)
//   - queryEmbedding: The query embedding, computed once per call by the
//     orchestrator and shared across branches
//   - pool: The kind's chunk pool, read-only for the duration of the call
//   - limit: The budgeted per-kind item limit
//   - threshold: The budgeted similarity threshold
//   - bypassCache: Skip the cache lookup (the fresh result is still stored)
//
// Returns the tagged branch result. Never returns an error; failures are
// tagged on the result so no branch can abort the overall call.
func (s *Stage) Retrieve(ctx context.Context, queryText string, queryEmbedding []float64, pool []*memory.Chunk, limit int, threshold float64, bypassCache bool) *Result {
	result := &Result{Kind: s.kind, Status: StatusOK}

	if limit <= 0 {
		return result
	}
	if len(queryEmbedding) == 0 {
		result.Status = StatusFailed
		result.Reason = "query embedding unavailable"
		return result
	}

	key := cache.Key(queryText, s.kind, limit, threshold)
	if s.cache != nil && !bypassCache {
		if entry, ok := s.cache.Get(ctx, key); ok {
			s.sink.Emit(events.New(events.TypeCacheHit, s.kind, nil))
			// Each hit gets its own copies; the scorer writes score
			// fields and the assembler path re-sorts in place.
			result.Chunks = memory.CloneScored(entry.Chunks)
			result.FromCache = true
			if entry.Degraded {
				result.Status = StatusDegraded
				result.Reason = "cached result was degraded"
			}
			return result
		}
		s.sink.Emit(events.New(events.TypeCacheMiss, s.kind, nil))
	}

	matches, completed := s.scan(ctx, queryEmbedding, pool, threshold, result)

	// Sort by descending similarity; ties keep pool order for determinism.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	superset := s.config.OversampleFactor * limit
	if len(matches) > superset {
		matches = matches[:superset]
	}

	if completed {
		matches, completed = s.expand(ctx, matches, pool)
	}

	result.Chunks = matches
	if !completed {
		result.Partial = true
		result.Status = StatusDegraded
		result.Reason = "branch timed out before completing the scan"
	}
	if len(pool) > 0 && float64(result.Mismatches) > s.config.MismatchDegradedRatio*float64(len(pool)) {
		result.Status = StatusDegraded
		result.Reason = fmt.Sprintf("%d of %d chunks had mismatched embedding dimensions", result.Mismatches, len(pool))
	}

	// Partial scans are not cached; a later call deserves a full pass.
	if s.cache != nil && !result.Partial {
		_ = s.cache.Set(ctx, key, &cache.Entry{
			Chunks:   memory.CloneScored(result.Chunks),
			Degraded: result.Status == StatusDegraded,
		})
	}

	return result
}

// scan computes query similarity for every chunk in the pool, skipping and
// counting dimension mismatches. Returns the matches above the threshold and
// whether the scan ran to completion.
func (s *Stage) scan(ctx context.Context, queryEmbedding []float64, pool []*memory.Chunk, threshold float64, result *Result) ([]*memory.ScoredChunk, bool) {
	matches := make([]*memory.ScoredChunk, 0, len(pool)/4+1)

	for _, chunk := range pool {
		select {
		case <-ctx.Done():
			return matches, false
		default:
		}

		sim, err := similarity.Cosine(queryEmbedding, chunk.Embedding)
		if err != nil {
			result.Mismatches++
			continue
		}
		if sim >= threshold {
			matches = append(matches, &memory.ScoredChunk{Chunk: chunk, Similarity: sim})
		}
	}

	return matches, true
}

// expand pulls in chunks related to the top matches: pool members whose
// similarity to a seed match (not the query) clears the looser expansion
// threshold. Expansion similarities are discounted so direct hits always
// rank first.
func (s *Stage) expand(ctx context.Context, matches []*memory.ScoredChunk, pool []*memory.Chunk) ([]*memory.ScoredChunk, bool) {
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[m.Chunk.ID] = struct{}{}
	}

	seeds := matches
	if len(seeds) > s.config.ExpansionSeeds {
		seeds = seeds[:s.config.ExpansionSeeds]
	}

	for _, seed := range seeds {
		var related []*memory.ScoredChunk

		for _, chunk := range pool {
			select {
			case <-ctx.Done():
				return matches, false
			default:
			}

			if _, ok := seen[chunk.ID]; ok {
				continue
			}

			sim, err := similarity.Cosine(seed.Chunk.Embedding, chunk.Embedding)
			if err != nil || sim <= s.config.ExpansionThreshold {
				continue
			}

			related = append(related, &memory.ScoredChunk{
				Chunk:      chunk,
				Similarity: sim * s.config.ExpansionDiscount,
				RelatedTo:  seed.Chunk.ID,
			})
		}

		sort.SliceStable(related, func(i, j int) bool {
			return related[i].Similarity > related[j].Similarity
		})
		if len(related) > s.config.ExpansionLimit {
			related = related[:s.config.ExpansionLimit]
		}

		for _, sc := range related {
			seen[sc.Chunk.ID] = struct{}{}
		}
		matches = append(matches, related...)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	return matches, true
}
