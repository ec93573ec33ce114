package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultHashDimension is the vector size of the hash provider.
const DefaultHashDimension = 1024

var _ Provider = (*HashEmbedder)(nil)

// HashEmbedder is an offline provider that maps word counts into a fixed number of
// buckets with FNV-1a feature hashing. Vectors are L2-normalized. It needs no
// network access and is fully deterministic.
type HashEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewHashEmbedder creates a hash provider. A non-positive dimension selects DefaultHashDimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this provider.
func (e *HashEmbedder) Name() string { return ProviderHash + ":" + strconv.Itoa(e.dimension) }

// Dimension returns the dimensionality of the produced vectors.
func (e *HashEmbedder) Dimension() int { return e.dimension }

// EmbedDocuments embeds each text independently.
func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	counts := make([]float64, e.dimension)
	for _, tok := range e.tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()

		// The top bit picks the sign so collisions tend to cancel
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		counts[sum%uint64(e.dimension)] += sign
	}

	// Sublinear term frequency, then L2 normalize
	var norm float64
	for i, c := range counts {
		if c != 0 {
			counts[i] = math.Copysign(1+math.Log(math.Abs(c)), c)
			norm += counts[i] * counts[i]
		}
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}
	return vec
}

func (e *HashEmbedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "into", "about", "so", "such", "can", "will", "just", "should", "how", "what", "do", "does", "i", "you",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
