package vectorindex

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-vec/index/bruteforce"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
)

func TestMarshalVectors_RoundTrip(t *testing.T) {
	idx, err := New([]Record{
		{Chunk: document.Chunk{ID: "a.md", Index: 0}, Vector: []float32{0.5, -1.25, 3}},
		{Chunk: document.Chunk{ID: "a.md", Index: 1}, Vector: []float32{0, 0, 0}},
		{Chunk: document.Chunk{ID: "ü.ts-comment-0"}, Vector: []float32{1e-7, 2, -3}},
	})
	require.NoError(t, err)

	data, err := idx.MarshalVectors()
	require.NoError(t, err)
	keys, vectors, err := UnmarshalVectors(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md#0", "a.md#1", "ü.ts-comment-0#0"}, keys)
	assert.Equal(t, [][]float32{{0.5, -1.25, 3}, {0, 0, 0}, {1e-7, 2, -3}}, vectors)
}

func TestMarshalVectors_ReadableByBruteForceIndex(t *testing.T) {
	idx, err := New([]Record{
		{Chunk: document.Chunk{ID: "east.md"}, Vector: []float32{1, 0}},
		{Chunk: document.Chunk{ID: "north.md"}, Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	data, err := idx.MarshalVectors()
	require.NoError(t, err)

	bf := &bruteforce.Index{}
	require.NoError(t, bf.UnmarshalBinary(data))
	ids, _, err := bf.Query([]float32{0.1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"north.md#0"}, ids)
}

func TestMarshalVectors_Empty(t *testing.T) {
	data, err := NewEmpty(4).MarshalVectors()
	require.NoError(t, err)

	keys, vectors, err := UnmarshalVectors(data)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, vectors)
}

func TestUnmarshalVectors_Corrupt(t *testing.T) {
	idx, err := New([]Record{{Chunk: document.Chunk{ID: "a"}, Vector: []float32{1, 2}}})
	require.NoError(t, err)
	data, err := idx.MarshalVectors()
	require.NoError(t, err)

	header := func(dim, n uint32) []byte {
		b := binary.LittleEndian.AppendUint32(nil, dim)
		return binary.LittleEndian.AppendUint32(b, n)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", data[:5]},
		{"truncated vector", data[:len(data)-1]},
		{"trailing bytes", append(append([]byte(nil), data...), 0)},
		{"id overruns", func() []byte {
			b := append([]byte(nil), data...)
			binary.LittleEndian.PutUint32(b[8:], 1000)
			return b
		}()},
		{"record count exceeds data", header(4, 0xFFFFFFFF)},
		{"record count exceeds data with payload", append(header(2, 3), data[8:]...)},
		{"dimension too large", header(MaxDimension+1, 0)},
		{"records without dimension", header(0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UnmarshalVectors(tt.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
