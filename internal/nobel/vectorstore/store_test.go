package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"manifold/internal/nobel/corpus"
)

func TestValidateFiltersRejectsUnknownField(t *testing.T) {
	err := ValidateFilters(map[string]string{"bogus": "x"})
	require.Error(t, err)
}

func TestValidateFiltersAcceptsKnownFields(t *testing.T) {
	err := ValidateFilters(map[string]string{"country": "Sweden", "gender": "female"})
	require.NoError(t, err)
}

func TestMemoryStoreSearchAppliesThresholdAndFilters(t *testing.T) {
	store := NewMemory()
	store.Seed(corpus.Chunk{ID: "c1", LaureateName: "Toni Morrison", Country: "United States"}, []float32{1, 0})
	store.Seed(corpus.Chunk{ID: "c2", LaureateName: "Kazuo Ishiguro", Country: "United Kingdom"}, []float32{0, 1})

	results, err := store.Search(context.Background(), []float32{1, 0}, 10, 0.5, map[string]string{"country": "United States"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "c1", results[0].Chunk.ID)
}

func TestMemoryStoreSearchRejectsInvalidFilter(t *testing.T) {
	store := NewMemory()
	_, err := store.Search(context.Background(), []float32{1, 0}, 10, 0, map[string]string{"bogus": "x"})
	require.Error(t, err)
}

func TestMemoryStoreSearchTieBreaksByChunkIDAscending(t *testing.T) {
	store := NewMemory()
	store.Seed(corpus.Chunk{ID: "z-chunk"}, []float32{1, 0})
	store.Seed(corpus.Chunk{ID: "a-chunk"}, []float32{1, 0})

	results, err := store.Search(context.Background(), []float32{1, 0}, 10, 0, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a-chunk", results[0].Chunk.ID)
	require.Equal(t, "z-chunk", results[1].Chunk.ID)
}

func TestPointIDIsDeterministic(t *testing.T) {
	require.Equal(t, PointID("chunk-123"), PointID("chunk-123"))
	require.NotEqual(t, PointID("chunk-123"), PointID("chunk-124"))
}
