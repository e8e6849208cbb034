// Package fingerprint detects duplicate and near-duplicate content across
// memory kinds.
//
// Duplicate detection works on normalized text: two items are duplicates when
// their normalized-text digests are equal (exact duplicate) or when the
// Jaccard similarity of their word sets reaches the diversity threshold
// (near duplicate). When a duplicate pair spans two kinds, the
// higher-precedence kind wins and the loser is dropped entirely; content is
// never spliced together.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/recallhq/recall-go/pkg/memory"
)

// Fingerprint is the normalized-text digest of one chunk. Fingerprints live
// only for the duration of one deduplication pass.
type Fingerprint struct {
	// Hash is the 128-bit digest of the normalized text, hex encoded.
	Hash string

	// NormalizedText is the text the hash was computed over.
	NormalizedText string

	// SourceChunkID identifies the chunk the fingerprint was taken from.
	SourceChunkID string

	tokens map[string]struct{}
}

// New computes the fingerprint of a chunk's content.
func New(chunk *memory.Chunk) *Fingerprint {
	normalized := Normalize(chunk.Content)
	return &Fingerprint{
		Hash:           hashText(normalized),
		NormalizedText: normalized,
		SourceChunkID:  chunk.ID,
		tokens:         tokenSet(normalized),
	}
}

// Normalize lowercases the text, strips punctuation, and collapses runs of
// whitespace to single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// Dropped entirely; "don't" and "dont" normalize the same way.
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// hashText returns the first 128 bits of the SHA-256 of the text, hex
// encoded.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// Jaccard computes the Jaccard similarity of the whitespace-tokenized word
// sets of two normalized texts. Two empty texts are fully similar.
func Jaccard(a, b string) float64 {
	return jaccardSets(tokenSet(a), tokenSet(b))
}

func jaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(text)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
