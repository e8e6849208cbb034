// Package salience computes composite relevance scores for retrieved chunks.
//
// Salience combines three signals: how similar the chunk is to the query, how
// recently it was recorded, and how strongly it matches a configurable
// project-relevance vocabulary. The composite is the final ranking key after
// the per-kind branches have merged.
package salience

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Weights are the relative weights of the three salience components.
//
// Weights are a configuration surface, not hardcoded constants. They are
// normalized at scorer construction so they always sum to 1.
type Weights struct {
	// Recency is the weight of the exponential-decay recency score.
	Recency float64 `json:"recency"`

	// Similarity is the weight of the raw query similarity.
	Similarity float64 `json:"similarity"`

	// Domain is the weight of the vocabulary-match domain score.
	Domain float64 `json:"domain"`
}

// DefaultWeights returns the default component weights
// (recency 0.3, similarity 0.5, domain 0.2).
func DefaultWeights() Weights {
	return Weights{Recency: 0.3, Similarity: 0.5, Domain: 0.2}
}

// Config configures a Scorer.
type Config struct {
	// HalfLifeDays controls the recency decay rate. A chunk this many days
	// old scores exp(-1) on the recency component. Default: 30.
	HalfLifeDays float64

	// Weights are the component weights. Zero-value weights use
	// DefaultWeights.
	Weights Weights

	// Vocabulary is the project-relevance term list matched against chunk
	// content for the domain score. Empty means the domain component is
	// always 0. The vocabulary is external configuration, never hardcoded
	// product phrases.
	Vocabulary []string
}

// Scorer computes per-chunk salience scores. It is stateless after
// construction and safe for concurrent use.
type Scorer struct {
	halfLifeDays float64
	weights      Weights
	vocabulary   []string
}

// NewScorer creates a salience scorer. A nil config uses the defaults.
// Weights that do not sum to 1 are normalized.
func NewScorer(cfg *Config) *Scorer {
	if cfg == nil {
		cfg = &Config{}
	}

	halfLife := cfg.HalfLifeDays
	if halfLife <= 0 {
		halfLife = 30
	}

	w := cfg.Weights
	if w.Recency == 0 && w.Similarity == 0 && w.Domain == 0 {
		w = DefaultWeights()
	}
	if sum := w.Recency + w.Similarity + w.Domain; sum != 1 && sum > 0 {
		w.Recency /= sum
		w.Similarity /= sum
		w.Domain /= sum
	}

	vocabulary := make([]string, 0, len(cfg.Vocabulary))
	for _, term := range cfg.Vocabulary {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			vocabulary = append(vocabulary, term)
		}
	}

	return &Scorer{
		halfLifeDays: halfLife,
		weights:      w,
		vocabulary:   vocabulary,
	}
}

// Score computes the salience components for one chunk.
//
// The recency score follows an exponential decay,
// exp(-ageInDays / halfLifeDays), so very old chunks approach but never
// reach exactly 0. The domain score is the fraction of vocabulary terms
// present in the chunk content.
//
// Parameters:
//   - sc: Scored chunk carrying the raw similarity; its recency, domain, and
//     salience fields are filled in place
//   - now: Reference time for recency, passed in to keep scoring
//     deterministic for identical inputs
//
// Returns sc for chaining.
func (s *Scorer) Score(sc *memory.ScoredChunk, now time.Time) *memory.ScoredChunk {
	sc.RecencyScore = s.recency(sc.Chunk.Timestamp, now)
	sc.DomainScore = s.domainScore(sc.Chunk.Content)
	sc.Salience = sc.RecencyScore*s.weights.Recency +
		sc.Similarity*s.weights.Similarity +
		sc.DomainScore*s.weights.Domain
	return sc
}

// ScoreAll scores every chunk in the slice in place and returns the slice
// ranked by descending salience.
func (s *Scorer) ScoreAll(chunks []*memory.ScoredChunk, now time.Time) []*memory.ScoredChunk {
	for _, sc := range chunks {
		s.Score(sc, now)
	}
	Rank(chunks)
	return chunks
}

func (s *Scorer) recency(timestamp, now time.Time) float64 {
	if timestamp.IsZero() || !timestamp.Before(now) {
		return 1.0
	}
	ageDays := now.Sub(timestamp).Hours() / 24.0
	return math.Exp(-ageDays / s.halfLifeDays)
}

func (s *Scorer) domainScore(content string) float64 {
	if len(s.vocabulary) == 0 {
		return 0
	}

	lower := strings.ToLower(content)
	matched := 0
	for _, term := range s.vocabulary {
		if strings.Contains(lower, term) {
			matched++
		}
	}

	return float64(matched) / float64(len(s.vocabulary))
}

// Rank sorts scored chunks by descending salience, in place.
//
// Ties break by higher raw similarity, then by more recent timestamp, then by
// stable input order, so results are deterministic for identical inputs.
func Rank(chunks []*memory.ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Salience != chunks[j].Salience {
			return chunks[i].Salience > chunks[j].Salience
		}
		if chunks[i].Similarity != chunks[j].Similarity {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		return chunks[i].Chunk.Timestamp.After(chunks[j].Chunk.Timestamp)
	})
}
