// Package analyzer defines the query analysis interface consumed by the
// budget allocator.
//
// The pipeline treats the analyzer as an external collaborator: it only
// consumes the QueryAnalysis it produces. The heuristic subpackage provides a
// rule-based implementation suitable for local use.
package analyzer

import (
	"context"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Complexity classifies how much evidence a query needs.
type Complexity string

const (
	// ComplexityLow marks simple queries that need few, precise results.
	ComplexityLow Complexity = "low"

	// ComplexityMedium marks typical queries.
	ComplexityMedium Complexity = "medium"

	// ComplexityHigh marks complex queries that need broader evidence.
	ComplexityHigh Complexity = "high"
)

// Rank returns the ordering rank of the complexity level (low < medium < high).
// Unknown values rank as medium.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityLow:
		return 0
	case ComplexityHigh:
		return 2
	}
	return 1
}

// QueryType classifies the shape of a query.
type QueryType string

const (
	// QueryTypeFactual marks queries asking for a specific fact.
	QueryTypeFactual QueryType = "factual"

	// QueryTypeConceptual marks queries asking how or why something works.
	QueryTypeConceptual QueryType = "conceptual"

	// QueryTypeComparative marks queries comparing alternatives.
	QueryTypeComparative QueryType = "comparative"

	// QueryTypeOther marks queries that fit none of the above.
	QueryTypeOther QueryType = "other"
)

// QueryAnalysis is the classification of one query, produced once per
// retrieval call and consumed read-only by the budget allocator.
type QueryAnalysis struct {
	// RawQuery is the original query text.
	RawQuery string `json:"raw_query"`

	// Complexity classifies how much evidence the query needs.
	Complexity Complexity `json:"complexity"`

	// QueryType classifies the shape of the query.
	QueryType QueryType `json:"query_type"`

	// DomainRelevance maps each memory kind to a relevance score (0.0-1.0).
	// Kinds scoring above the allocator's relevance threshold get a larger
	// share of the budget.
	DomainRelevance map[memory.Kind]float64 `json:"domain_relevance"`
}

// Default returns a neutral analysis for the given query. It is used when no
// analyzer is configured or when analysis fails, so that retrieval can still
// proceed with base budgets.
func Default(query string) *QueryAnalysis {
	return &QueryAnalysis{
		RawQuery:        query,
		Complexity:      ComplexityMedium,
		QueryType:       QueryTypeOther,
		DomainRelevance: map[memory.Kind]float64{},
	}
}

// Analyzer classifies query complexity, type, and per-kind domain relevance.
type Analyzer interface {
	// Analyze classifies the given query text.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - query: The raw query text
	//
	// Returns the analysis and any error.
	Analyze(ctx context.Context, query string) (*QueryAnalysis, error)
}
