package fingerprint

import (
	"github.com/recallhq/recall-go/pkg/memory"
)

// Deduper removes cross-kind duplicates from ranked retrieval sections.
//
// Within one kind no dedup is applied; the budget clamp and ranking already
// bounded those sets. Across kinds, the fixed precedence order
// (Code > Conversation > Narrative) decides which copy survives.
//
// The pairwise comparison is O(n*m) per kind pair, which is acceptable
// because post-retrieval sets stay small (around 50 items total).
type Deduper struct {
	// threshold is the Jaccard similarity at or above which two items are
	// considered near duplicates.
	threshold float64
}

// DefaultDiversityThreshold is the Jaccard similarity at which two items
// count as near duplicates unless configured otherwise.
const DefaultDiversityThreshold = 0.85

// NewDeduper creates a deduper with the given diversity threshold.
// A non-positive threshold uses DefaultDiversityThreshold.
func NewDeduper(threshold float64) *Deduper {
	if threshold <= 0 {
		threshold = DefaultDiversityThreshold
	}
	return &Deduper{threshold: threshold}
}

// Dedupe removes entries from lower-precedence kinds whose content
// duplicates an entry in a higher-precedence kind. The input map is not
// modified; surviving slices are returned in a new map, preserving order.
//
// Dedupe is idempotent: running it on its own output removes nothing
// further.
func (d *Deduper) Dedupe(sections map[memory.Kind][]*memory.ScoredChunk) map[memory.Kind][]*memory.ScoredChunk {
	result := make(map[memory.Kind][]*memory.ScoredChunk, len(sections))

	// Fingerprints of everything kept so far, from higher-precedence kinds.
	var kept []*Fingerprint

	for _, kind := range memory.AllKinds() {
		chunks, ok := sections[kind]
		if !ok {
			continue
		}

		survivors := make([]*memory.ScoredChunk, 0, len(chunks))
		kindFPs := make([]*Fingerprint, 0, len(chunks))
		for _, sc := range chunks {
			fp := New(sc.Chunk)
			// Same-kind entries are never compared against each other.
			if d.duplicates(fp, kept) {
				continue
			}
			survivors = append(survivors, sc)
			kindFPs = append(kindFPs, fp)
		}
		result[kind] = survivors
		kept = append(kept, kindFPs...)
	}

	// Kinds outside the precedence order pass through untouched.
	for kind, chunks := range sections {
		if _, ok := result[kind]; !ok {
			result[kind] = chunks
		}
	}

	return result
}

func (d *Deduper) duplicates(fp *Fingerprint, kept []*Fingerprint) bool {
	for _, other := range kept {
		if fp.Hash == other.Hash {
			return true
		}
		if jaccardSets(fp.tokens, other.tokens) >= d.threshold {
			return true
		}
	}
	return false
}
