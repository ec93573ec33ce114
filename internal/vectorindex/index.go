// Package vectorindex holds embedded chunks in memory and answers nearest-neighbour queries.
package vectorindex

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/viant/sqlite-vec/index"
	"github.com/viant/sqlite-vec/index/bruteforce"
	"github.com/viant/sqlite-vec/index/cover"
	"github.com/viant/sqlite-vec/vector"
	"github.com/viant/vec/search"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
)

var (
	// ErrEmptyBatch is returned when an index is created or extended with no records.
	ErrEmptyBatch = errors.New("vectorindex: empty batch")

	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")
)

// exactSearchLimit is the largest index searched by a full scan.
// Larger indexes are searched through a cover tree.
const exactSearchLimit = 1024

// Record is one embedded chunk.
type Record struct {
	Chunk  document.Chunk
	Vector []float32
}

// Key identifies the record's chunk uniquely within an index.
func (r Record) Key() string {
	return fmt.Sprintf("%s#%d", r.Chunk.ID, r.Chunk.Index)
}

// Hit is a search result. Score is the cosine similarity to the query.
type Hit struct {
	Chunk document.Chunk
	Score float64
}

// Index is a cosine-similarity index. It is safe for concurrent use.
//
// Records keep their insertion order. The search structure is rebuilt lazily
// after records are added: a brute-force scan for small indexes, otherwise a
// cover tree over unit-normalized vectors with Euclidean distance, which ranks
// exactly like cosine similarity.
type Index struct {
	mu         sync.RWMutex
	dim        int
	records    []Record
	engine     index.Index
	exact      bool
	dirty      bool
	exactLimit int
	embedder   string
}

// New creates an index from its first batch of records. The batch fixes the dimension.
func New(records []Record) (*Index, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(records[0].Vector) == 0 {
		return nil, fmt.Errorf("%w: first vector is empty", ErrDimensionMismatch)
	}

	idx := NewEmpty(len(records[0].Vector))
	if err := idx.Add(records); err != nil {
		return nil, err
	}
	return idx, nil
}

// NewEmpty creates an index with no records. Used when a persisted index holds no vectors.
func NewEmpty(dim int) *Index {
	return &Index{dim: dim, exactLimit: exactSearchLimit, dirty: true}
}

// Add appends records. The whole batch is rejected if any vector has the wrong dimension.
func (i *Index) Add(records []Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}
	for n, r := range records {
		if len(r.Vector) != i.dim {
			return fmt.Errorf("%w: record %d (%s) has %d values, index has %d",
				ErrDimensionMismatch, n, r.Key(), len(r.Vector), i.dim)
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.records = append(i.records, records...)
	i.dirty = true
	return nil
}

// Len returns the number of records in the index.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// Dimension returns the vector dimension of the index.
func (i *Index) Dimension() int {
	return i.dim
}

// SetEmbedder records the name of the provider that produced the vectors.
func (i *Index) SetEmbedder(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.embedder = name
}

// Embedder returns the name of the provider that produced the vectors, if known.
func (i *Index) Embedder() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.embedder
}

// Records returns the records in insertion order.
func (i *Index) Records() []Record {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.records)
}

// Search returns up to k hits ordered by descending similarity.
// Equal scores are ordered by insertion. Zero vectors never match.
func (i *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != i.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), i.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	q := unit(query)
	if q == nil {
		return nil, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dirty {
		if err := i.build(); err != nil {
			return nil, err
		}
	}

	// The full scan returns every match so ties can be ordered by insertion
	want := k
	if i.exact {
		want = 0
	}
	ids, _, err := i.engine.Query(q, want)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	type ranked struct {
		pos   int
		score float64
	}
	found := make([]ranked, 0, len(ids))
	for _, id := range ids {
		pos, err := strconv.Atoi(id)
		if err != nil || pos < 0 || pos >= len(i.records) {
			return nil, fmt.Errorf("search: unknown record id %q", id)
		}
		score, err := vector.CosineSimilarity(query, i.records[pos].Vector)
		if err != nil {
			continue
		}
		found = append(found, ranked{pos: pos, score: score})
	}
	slices.SortFunc(found, func(a, b ranked) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	hits := make([]Hit, 0, min(k, len(found)))
	for _, f := range found[:min(k, len(found))] {
		hits = append(hits, Hit{Chunk: i.records[f.pos].Chunk, Score: f.score})
	}
	return hits, nil
}

// build replaces the search structure. Records are identified by position.
func (i *Index) build() error {
	ids := make([]string, 0, len(i.records))
	vecs := make([][]float32, 0, len(i.records))
	for pos, r := range i.records {
		u := unit(r.Vector)
		if u == nil {
			continue
		}
		ids = append(ids, strconv.Itoa(pos))
		vecs = append(vecs, u)
	}

	var engine index.Index
	exact := len(ids) <= i.exactLimit
	if exact {
		engine = &bruteforce.Index{}
	} else {
		engine = cover.New(cover.WithDistance(cover.DistanceFunctionEuclidean))
	}
	if err := engine.Build(ids, vecs); err != nil {
		return fmt.Errorf("build search index: %w", err)
	}

	i.engine = engine
	i.exact = exact
	i.dirty = false
	return nil
}

// unit returns a unit-length copy of v, or nil for a zero or non-finite vector.
func unit(v []float32) []float32 {
	mag := float64(search.Float32s(v).Magnitude())
	if mag == 0 || math.IsNaN(mag) || math.IsInf(mag, 0) {
		return nil
	}
	out := make([]float32, len(v))
	for n, x := range v {
		out[n] = float32(float64(x) / mag)
	}
	return out
}
