package vectorindex

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/viant/sqlite-vec/index/bruteforce"
	"github.com/viant/sqlite-vec/vector"
)

// ErrCorrupt is returned when encoded vector data cannot be decoded.
var ErrCorrupt = errors.New("vectorindex: corrupt vector data")

// MaxDimension is the largest vector dimension accepted from encoded data.
const MaxDimension = 1 << 16

// MarshalVectors encodes the index vectors in the sqlite-vec brute-force format:
// dim(uint32), n(uint32), then for each record idLen(uint32), id bytes, vec(float32[dim]).
// The id is the record key. All integers are little-endian.
func (i *Index) MarshalVectors() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	keys := make([]string, len(i.records))
	vecs := make([][]float32, len(i.records))
	for n, r := range i.records {
		keys[n] = r.Key()
		vecs[n] = r.Vector
	}

	bf := &bruteforce.Index{}
	if err := bf.Build(keys, vecs); err != nil {
		return nil, fmt.Errorf("encode vectors: %w", err)
	}
	return bf.MarshalBinary()
}

// UnmarshalVectors decodes data produced by MarshalVectors into parallel slices of keys and vectors.
// The header is checked against the data length before anything is allocated.
func UnmarshalVectors(data []byte) (keys []string, vectors [][]float32, err error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: header truncated", ErrCorrupt)
	}
	dim := uint64(binary.LittleEndian.Uint32(data[0:4]))
	n := uint64(binary.LittleEndian.Uint32(data[4:8]))
	switch {
	case dim > MaxDimension:
		return nil, nil, fmt.Errorf("%w: dimension %d exceeds %d", ErrCorrupt, dim, MaxDimension)
	case dim == 0 && n > 0:
		return nil, nil, fmt.Errorf("%w: zero dimension", ErrCorrupt)
	case n*(4+4*dim) > uint64(len(data)-8):
		return nil, nil, fmt.Errorf("%w: %d records of dimension %d do not fit in %d bytes", ErrCorrupt, n, dim, len(data))
	}

	off := 8
	width := 4 * int(dim)
	keys = make([]string, 0, n)
	vectors = make([][]float32, 0, n)
	for range n {
		if off+4 > len(data) {
			return nil, nil, fmt.Errorf("%w: truncated", ErrCorrupt)
		}
		idLen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if idLen > len(data)-off {
			return nil, nil, fmt.Errorf("%w: truncated id", ErrCorrupt)
		}
		keys = append(keys, string(data[off:off+idLen]))
		off += idLen

		if width > len(data)-off {
			return nil, nil, fmt.Errorf("%w: truncated vector", ErrCorrupt)
		}
		vec, err := vector.DecodeEmbedding(data[off : off+width])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		vectors = append(vectors, vec)
		off += width
	}
	if off != len(data) {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(data)-off)
	}
	return keys, vectors, nil
}
