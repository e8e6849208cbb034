// Package heuristic provides a rule-based query analyzer.
//
// It classifies queries with keyword and structure heuristics instead of an
// LLM, making it fast, deterministic, and dependency-free. The per-kind
// vocabularies are configuration, not core logic: callers tune them to their
// project instead of relying on hardcoded product phrases.
package heuristic

import (
	"context"
	"strings"

	"github.com/recallhq/recall-go/pkg/analyzer"
	"github.com/recallhq/recall-go/pkg/memory"
)

// Config configures the heuristic analyzer.
type Config struct {
	// Vocabulary maps each memory kind to the terms that signal relevance
	// for that kind. The fraction of matched terms (scaled) becomes the
	// kind's domain relevance score.
	Vocabulary map[memory.Kind][]string

	// HighComplexityWords is the word count at or above which a query is
	// classified high complexity. Default: 16.
	HighComplexityWords int

	// LowComplexityWords is the word count at or below which a query is
	// classified low complexity. Default: 4.
	LowComplexityWords int
}

// DefaultConfig returns a configuration with a general-purpose vocabulary.
func DefaultConfig() *Config {
	return &Config{
		Vocabulary: map[memory.Kind][]string{
			memory.KindCode: {
				"function", "method", "class", "struct", "interface",
				"bug", "error", "compile", "test", "refactor", "implement",
				"api", "import", "variable", "file", "code",
			},
			memory.KindConversation: {
				"said", "told", "discussed", "asked", "mentioned",
				"yesterday", "earlier", "last time", "we talked", "remember",
				"conversation", "chat",
			},
			memory.KindNarrative: {
				"project", "goal", "plan", "decision", "history",
				"story", "summary", "overview", "context", "background",
			},
		},
		HighComplexityWords: 16,
		LowComplexityWords:  4,
	}
}

// Analyzer is a rule-based implementation of analyzer.Analyzer.
//
// Classification rules:
//   - Complexity from word count and clause structure (conjunctions and
//     multiple question marks raise it).
//   - Query type from interrogative patterns ("what is" is factual, "how" or
//     "why" is conceptual, "compare"/"versus" is comparative).
//   - Domain relevance from the fraction of vocabulary terms present.
type Analyzer struct {
	config *Config
}

// New creates a heuristic analyzer. A nil config uses DefaultConfig.
func New(cfg *Config) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.HighComplexityWords == 0 {
		cfg.HighComplexityWords = 16
	}
	if cfg.LowComplexityWords == 0 {
		cfg.LowComplexityWords = 4
	}
	return &Analyzer{config: cfg}
}

// Analyze classifies the query. It never fails; the error return exists to
// satisfy analyzer.Analyzer.
func (a *Analyzer) Analyze(ctx context.Context, query string) (*analyzer.QueryAnalysis, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(lower)

	return &analyzer.QueryAnalysis{
		RawQuery:        query,
		Complexity:      a.classifyComplexity(lower, words),
		QueryType:       classifyType(lower),
		DomainRelevance: a.scoreDomains(lower),
	}, nil
}

func (a *Analyzer) classifyComplexity(lower string, words []string) analyzer.Complexity {
	score := len(words)

	// Conjunctions and stacked questions indicate multi-part queries.
	for _, marker := range []string{" and ", " but ", " then ", "; "} {
		if strings.Contains(lower, marker) {
			score += 4
		}
	}
	if strings.Count(lower, "?") > 1 {
		score += 4
	}

	switch {
	case score >= a.config.HighComplexityWords:
		return analyzer.ComplexityHigh
	case score <= a.config.LowComplexityWords:
		return analyzer.ComplexityLow
	default:
		return analyzer.ComplexityMedium
	}
}

func classifyType(lower string) analyzer.QueryType {
	comparative := []string{"compare", " vs ", " versus ", "difference between", "better than", "or should"}
	for _, marker := range comparative {
		if strings.Contains(lower, marker) {
			return analyzer.QueryTypeComparative
		}
	}

	conceptual := []string{"how ", "why ", "explain", "understand", "concept"}
	for _, marker := range conceptual {
		if strings.Contains(lower, marker) {
			return analyzer.QueryTypeConceptual
		}
	}

	factual := []string{"what is", "what's", "when ", "where ", "who ", "which ", "list ", "show me"}
	for _, marker := range factual {
		if strings.Contains(lower, marker) {
			return analyzer.QueryTypeFactual
		}
	}

	return analyzer.QueryTypeOther
}

// scoreDomains scores each kind by the fraction of its vocabulary present in
// the query. A third of the vocabulary matching is already a strong signal,
// so the fraction is scaled by 3 and clamped to 1.0.
func (a *Analyzer) scoreDomains(lower string) map[memory.Kind]float64 {
	relevance := make(map[memory.Kind]float64, len(a.config.Vocabulary))

	for kind, terms := range a.config.Vocabulary {
		if len(terms) == 0 {
			relevance[kind] = 0
			continue
		}

		matched := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}

		score := 3.0 * float64(matched) / float64(len(terms))
		if score > 1.0 {
			score = 1.0
		}
		relevance[kind] = score
	}

	return relevance
}
