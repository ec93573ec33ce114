package vectorindex

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-vec/vector"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
)

func record(id string, vec ...float32) Record {
	return Record{Chunk: document.Chunk{ID: id, Content: "content of " + id}, Vector: vec}
}

func randomRecords(r *rand.Rand, n, dim int) []Record {
	records := make([]Record, n)
	for i := range records {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = float32(r.NormFloat64())
		}
		records[i] = Record{Chunk: document.Chunk{ID: fmt.Sprintf("doc-%d", i)}, Vector: vec}
	}
	return records
}

func TestNew_EmptyBatch(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestAdd_DimensionMismatch(t *testing.T) {
	idx, err := New([]Record{record("a", 1, 0, 0)})
	require.NoError(t, err)

	err = idx.Add([]Record{record("b", 0, 1, 0), record("c", 1, 1)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Len(), "rejected batch adds nothing")

	assert.ErrorIs(t, idx.Add(nil), ErrEmptyBatch)
}

func TestSearch_OrdersBySimilarity(t *testing.T) {
	idx, err := New([]Record{
		record("east", 1, 0),
		record("north", 0, 1),
		record("northeast", 1, 1),
	})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{2, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "east", hits[0].Chunk.ID)
	assert.Equal(t, "northeast", hits[1].Chunk.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.InDelta(t, 0.9988, hits[0].Score, 1e-3)
}

func TestSearch_KLargerThanIndex(t *testing.T) {
	idx, err := New([]Record{record("a", 1, 0), record("b", 0, 1)})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_TiesFollowInsertionOrder(t *testing.T) {
	idx, err := New([]Record{record("first", 1, 0), record("second", 2, 0), record("other", 0, 1)})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].Chunk.ID)
	assert.Equal(t, "second", hits[1].Chunk.ID)
}

func TestSearch_ZeroVectors(t *testing.T) {
	idx, err := New([]Record{record("zero", 0, 0), record("a", 1, 0)})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1, "zero vectors are never returned")
	assert.Equal(t, "a", hits[0].Chunk.ID)

	hits, err = idx.Search([]float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	idx, err := New([]Record{record("a", 1, 0)})
	require.NoError(t, err)

	_, err = idx.Search([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_CoverTreeMatchesFullScan(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	records := randomRecords(r, 600, 16)

	tree, err := New(records[:300])
	require.NoError(t, err)
	require.NoError(t, tree.Add(records[300:]))
	tree.exactLimit = 0

	linear, err := New(records)
	require.NoError(t, err)

	for q := range 25 {
		query := randomRecords(r, 1, 16)[0].Vector
		want, err := linear.Search(query, 7)
		require.NoError(t, err)
		got, err := tree.Search(query, 7)
		require.NoError(t, err)
		require.Len(t, got, 7)

		for n := range want {
			assert.Equal(t, want[n].Chunk.ID, got[n].Chunk.ID, "query %d rank %d", q, n)
			assert.InDelta(t, want[n].Score, got[n].Score, 1e-9)
		}
	}
}

func TestSearch_CoverTreeRebuildsAfterAdd(t *testing.T) {
	idx, err := New([]Record{record("a", 1, 0, 0), record("b", 0, 1, 0)})
	require.NoError(t, err)
	idx.exactLimit = 0

	hits, err := idx.Search([]float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, idx.Add([]Record{record("c", 0, 0, 1)}))
	hits, err = idx.Search([]float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].Chunk.ID)
}

func TestRecords_ReturnsInsertionOrder(t *testing.T) {
	idx, err := New([]Record{record("a", 1), record("b", 2)})
	require.NoError(t, err)
	require.NoError(t, idx.Add([]Record{record("c", 3)}))

	records := idx.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].Chunk.ID)
	assert.Equal(t, "c", records[2].Chunk.ID)
	assert.Equal(t, []float32{2}, records[1].Vector, "stored vectors are not normalized")
	assert.Equal(t, 1, idx.Dimension())
}

func TestNewEmpty(t *testing.T) {
	idx := NewEmpty(3)
	assert.Equal(t, 0, idx.Len())

	hits, err := idx.Search([]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Add([]Record{record("a", 1, 0, 0)}))
	assert.Equal(t, 1, idx.Len())
}

func TestSearch_ScoresAreCosineSimilarity(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	records := randomRecords(r, 40, 8)
	idx, err := New(records)
	require.NoError(t, err)
	idx.exactLimit = 0

	query := randomRecords(r, 1, 8)[0].Vector
	hits, err := idx.Search(query, 10)
	require.NoError(t, err)
	require.Len(t, hits, 10)

	byID := map[string][]float32{}
	for _, rec := range records {
		byID[rec.Chunk.ID] = rec.Vector
	}
	for n, h := range hits {
		want, err := vector.CosineSimilarity(query, byID[h.Chunk.ID])
		require.NoError(t, err)
		assert.InDelta(t, want, h.Score, 1e-12)
		if n > 0 {
			assert.GreaterOrEqual(t, hits[n-1].Score, h.Score)
		}
	}
}
