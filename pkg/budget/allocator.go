// Package budget turns query analysis into per-kind item limits and
// similarity thresholds for one retrieval call.
//
// Allocation is pure and deterministic given identical inputs, which keeps
// the whole pipeline testable: the same query analysis always yields the
// same budget.
package budget

import (
	"time"

	"github.com/recallhq/recall-go/pkg/analyzer"
	"github.com/recallhq/recall-go/pkg/memory"
)

// Budget holds the per-kind item limits, similarity thresholds, and timeouts
// for one retrieval call. Budgets are recomputed each call and never
// persisted.
type Budget struct {
	// PerKindLimit is the maximum number of items to return per kind.
	// Values are non-negative and clamped to the allocator's MaxLimit.
	PerKindLimit map[memory.Kind]int

	// SimilarityThreshold is the minimum cosine similarity per kind.
	// Values are clamped to [0.5, 0.9].
	SimilarityThreshold map[memory.Kind]float64

	// OverallTimeout bounds the whole retrieval call.
	OverallTimeout time.Duration

	// PerBranchTimeout bounds each kind's retrieval branch. Narrative gets
	// the shortest window since it is the lowest-priority kind.
	PerBranchTimeout map[memory.Kind]time.Duration
}

// Overrides carries caller-supplied budget fields. A set field is used
// verbatim and receives no adaptive adjustment: explicit intent always wins.
type Overrides struct {
	// Limits overrides the per-kind item limit for the listed kinds.
	Limits map[memory.Kind]int

	// Threshold overrides the similarity threshold for all kinds.
	// Nil means no override.
	Threshold *float64

	// OverallTimeout overrides the overall timeout when positive.
	OverallTimeout time.Duration
}

// Allocator derives budgets from query analysis.
//
// The zero value is not usable; create allocators with NewAllocator.
type Allocator struct {
	config *AllocatorConfig
}

// AllocatorConfig is the tuning surface of the allocator.
type AllocatorConfig struct {
	// BaseLimits are the starting per-kind limits before adjustment.
	// Default: code=10, conversation=5, narrative=3.
	BaseLimits map[memory.Kind]int

	// BaseThreshold is the starting similarity threshold. Default: 0.65.
	BaseThreshold float64

	// MaxLimit caps every per-kind limit to bound output size. Default: 15.
	MaxLimit int

	// RelevanceBoundary is the domain relevance above which a kind is
	// considered highly relevant. Default: 0.7.
	RelevanceBoundary float64

	// OverallTimeout is the default overall timeout. Default: 15s.
	OverallTimeout time.Duration

	// BranchTimeoutShare is the fraction of the overall timeout granted to
	// each kind's branch. Default: code=0.8, conversation=0.7, narrative=0.5.
	BranchTimeoutShare map[memory.Kind]float64
}

// DefaultAllocatorConfig returns the default allocator tuning.
func DefaultAllocatorConfig() *AllocatorConfig {
	return &AllocatorConfig{
		BaseLimits: map[memory.Kind]int{
			memory.KindCode:         10,
			memory.KindConversation: 5,
			memory.KindNarrative:    3,
		},
		BaseThreshold:     0.65,
		MaxLimit:          15,
		RelevanceBoundary: 0.7,
		OverallTimeout:    15 * time.Second,
		BranchTimeoutShare: map[memory.Kind]float64{
			memory.KindCode:         0.8,
			memory.KindConversation: 0.7,
			memory.KindNarrative:    0.5,
		},
	}
}

// NewAllocator creates a budget allocator. A nil config uses
// DefaultAllocatorConfig.
func NewAllocator(cfg *AllocatorConfig) *Allocator {
	if cfg == nil {
		cfg = DefaultAllocatorConfig()
	} else {
		// Default onto a copy; the caller keeps ownership of its struct.
		clone := *cfg
		cfg = &clone
	}
	if cfg.BaseThreshold == 0 {
		cfg.BaseThreshold = 0.65
	}
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = 15
	}
	if cfg.RelevanceBoundary == 0 {
		cfg.RelevanceBoundary = 0.7
	}
	if cfg.OverallTimeout == 0 {
		cfg.OverallTimeout = 15 * time.Second
	}
	if cfg.BaseLimits == nil {
		cfg.BaseLimits = DefaultAllocatorConfig().BaseLimits
	}
	if cfg.BranchTimeoutShare == nil {
		cfg.BranchTimeoutShare = DefaultAllocatorConfig().BranchTimeoutShare
	}
	return &Allocator{config: cfg}
}

// Allocate derives the budget for one retrieval call.
//
// Limits start from the configured base values. A kind whose domain relevance
// exceeds the relevance boundary gets a boosted limit while the other kinds
// shrink (floored at 1). High complexity widens every limit; low complexity
// narrows them. Increasing complexity never decreases any limit.
//
// Thresholds start from the base threshold, are loosened for highly relevant
// kinds and for high complexity, tightened for low complexity, nudged by the
// query type, and clamped to [0.5, 0.9].
//
// Explicit overrides are applied verbatim with no further adjustment.
//
// Parameters:
//   - a: Query analysis (nil is treated as a neutral medium-complexity query)
//   - overrides: Optional caller overrides (nil for none)
//
// Returns the computed budget.
func (al *Allocator) Allocate(a *analyzer.QueryAnalysis, overrides *Overrides) *Budget {
	if a == nil {
		a = analyzer.Default("")
	}

	b := &Budget{
		PerKindLimit:        make(map[memory.Kind]int, len(al.config.BaseLimits)),
		SimilarityThreshold: make(map[memory.Kind]float64, len(al.config.BaseLimits)),
		OverallTimeout:      al.config.OverallTimeout,
		PerBranchTimeout:    make(map[memory.Kind]time.Duration, len(al.config.BaseLimits)),
	}
	if overrides != nil && overrides.OverallTimeout > 0 {
		b.OverallTimeout = overrides.OverallTimeout
	}

	boosted := al.highlyRelevantKinds(a)

	for _, kind := range memory.AllKinds() {
		b.PerKindLimit[kind] = al.allocateLimit(kind, a, boosted, overrides)
		b.SimilarityThreshold[kind] = al.allocateThreshold(kind, a, boosted, overrides)
		b.PerBranchTimeout[kind] = al.branchTimeout(kind, b.OverallTimeout)
	}

	return b
}

func (al *Allocator) highlyRelevantKinds(a *analyzer.QueryAnalysis) map[memory.Kind]bool {
	boosted := make(map[memory.Kind]bool)
	for kind, relevance := range a.DomainRelevance {
		if relevance > al.config.RelevanceBoundary {
			boosted[kind] = true
		}
	}
	return boosted
}

func (al *Allocator) allocateLimit(kind memory.Kind, a *analyzer.QueryAnalysis, boosted map[memory.Kind]bool, overrides *Overrides) int {
	if overrides != nil {
		if v, ok := overrides.Limits[kind]; ok {
			return clampLimit(v, al.config.MaxLimit)
		}
	}

	limit := al.config.BaseLimits[kind]

	// Domain focus: grow the highly relevant kinds, shrink the rest a step.
	if boosted[kind] {
		limit += limit / 2
	} else if len(boosted) > 0 {
		limit--
	}

	// Complexity: high needs broader evidence, low narrows the net.
	switch a.Complexity {
	case analyzer.ComplexityHigh:
		limit += 2
	case analyzer.ComplexityLow:
		limit -= 2
	}

	if limit < 1 {
		limit = 1
	}
	return clampLimit(limit, al.config.MaxLimit)
}

func (al *Allocator) allocateThreshold(kind memory.Kind, a *analyzer.QueryAnalysis, boosted map[memory.Kind]bool, overrides *Overrides) float64 {
	if overrides != nil && overrides.Threshold != nil {
		return *overrides.Threshold
	}

	threshold := al.config.BaseThreshold

	// A strong relevance signal permits a more permissive threshold.
	if boosted[kind] {
		threshold -= 0.05
	}

	switch a.Complexity {
	case analyzer.ComplexityLow:
		threshold += 0.05
	case analyzer.ComplexityHigh:
		threshold -= 0.05
	}

	switch a.QueryType {
	case analyzer.QueryTypeFactual:
		threshold += 0.03
	case analyzer.QueryTypeConceptual:
		threshold -= 0.03
	case analyzer.QueryTypeComparative:
		threshold -= 0.05
	}

	if threshold < 0.5 {
		threshold = 0.5
	}
	if threshold > 0.9 {
		threshold = 0.9
	}
	return threshold
}

func (al *Allocator) branchTimeout(kind memory.Kind, overall time.Duration) time.Duration {
	share, ok := al.config.BranchTimeoutShare[kind]
	if !ok || share <= 0 || share > 1 {
		share = 0.5
	}
	return time.Duration(float64(overall) * share)
}

func clampLimit(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
