package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosineIdenticalVectors(t *testing.T) {
	v := []float64{1, 0, 0}
	score, ok := Cosine(v, v)
	require.True(t, ok)
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestCosineOrthogonalVectors(t *testing.T) {
	score, ok := Cosine([]float64{1, 0}, []float64{0, 1})
	require.True(t, ok)
	require.InDelta(t, 0.0, score, 1e-9)
}

func TestCosineZeroVectorFiltered(t *testing.T) {
	_, ok := Cosine([]float64{0, 0}, []float64{1, 1})
	require.False(t, ok)
}

func TestCosineDifferingLengthsUsesShorter(t *testing.T) {
	score, ok := Cosine([]float64{1, 0, 99}, []float64{1, 0})
	require.True(t, ok)
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestEmbedDeterministic(t *testing.T) {
	a := Embed("Museums and galleries in London")
	b := Embed("Museums and galleries in London")
	require.Equal(t, a, b)
	require.Len(t, a, Dims)
}

// P8/S3: a search for "London" ranks the London-themed record first.
func TestVectorSearchRanksBySimilarity(t *testing.T) {
	idx := New()
	idx.Upsert("note:london1", Embed("Museums and galleries in London"))
	idx.Upsert("note:newyork1", Embed("Pizza places in New York"))

	results := idx.Search(Embed("London"), 1)
	require.Len(t, results, 1)
	require.Equal(t, "note:london1", results[0].ID)
}

func TestVectorSearchTieBreaksByInsertionOrder(t *testing.T) {
	idx := New()
	v := []float64{1, 0, 0}
	idx.Upsert("first", v)
	idx.Upsert("second", append([]float64(nil), v...))

	results := idx.Search(v, 2)
	require.Len(t, results, 2)
	require.Equal(t, "first", results[0].ID)
	require.Equal(t, "second", results[1].ID)
}

func TestVectorSearchEmptyVectorRejectedOnUpsert(t *testing.T) {
	idx := New()
	idx.Upsert("empty", nil)
	require.Equal(t, 0, idx.Len())
}

func TestVectorSearchRemove(t *testing.T) {
	idx := New()
	idx.Upsert("x", []float64{1, 0})
	idx.Remove("x")
	require.Equal(t, 0, idx.Len())
	require.Empty(t, idx.Search([]float64{1, 0}, 5))
}
