// Package similarity provides vector similarity computation for the
// retrieval pipeline.
//
// All functions are pure and safe to call from many goroutines concurrently.
package similarity

import (
	"errors"
	"math"
)

// ErrDimensionMismatch indicates that two vectors have different dimensions.
//
// Dimension mismatches are a data error, never silently coerced. Callers
// scanning a pool must skip the offending pair and continue rather than
// abort the whole batch.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Cosine computes the cosine similarity between two vectors.
//
// The formula is: similarity = dot(a, b) / (||a|| * ||b||)
//
// Returns ErrDimensionMismatch when len(a) != len(b). When either vector has
// zero magnitude the result is 0 with no error, so batch scans stay resilient
// to malformed embeddings.
//
// Parameters:
//   - a: First vector
//   - b: Second vector
//
// Returns cosine similarity between -1.0 and 1.0.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Normalize normalizes a vector to unit length (L2 norm).
//
// If the vector has zero norm, it is returned unchanged. The input slice is
// not modified.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	norm := math.Sqrt(sum)

	if norm == 0 {
		return v
	}

	result := make([]float64, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
