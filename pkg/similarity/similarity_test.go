package similarity_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall-go/pkg/similarity"
)

func TestCosine_IdenticalVectors(t *testing.T) {
	v := []float64{0.5, 0.3, 0.2}

	sim, err := similarity.Cosine(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosine_OrthogonalVectors(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}

	sim, err := similarity.Cosine(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosine_OppositeVectors(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-1, -2, -3}

	sim, err := similarity.Cosine(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestCosine_DimensionMismatch(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 2}

	_, err := similarity.Cosine(a, b)
	assert.ErrorIs(t, err, similarity.ErrDimensionMismatch)
}

func TestCosine_ZeroVector(t *testing.T) {
	// A zero-magnitude vector has no defined angle; similarity is 0, not an error.
	a := []float64{0, 0, 0}
	b := []float64{1, 2, 3}

	sim, err := similarity.Cosine(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosine_MagnitudeInvariant(t *testing.T) {
	a := []float64{1, 2, 3}
	scaled := []float64{10, 20, 30}

	sim, err := similarity.Cosine(a, scaled)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestNormalize(t *testing.T) {
	v := similarity.Normalize([]float64{3, 4})

	norm := math.Sqrt(v[0]*v[0] + v[1]*v[1])
	assert.InDelta(t, 1.0, norm, 1e-9)
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := similarity.Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, v)
}
