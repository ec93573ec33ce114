package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/embedding"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/storage"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/vectorindex"
)

// DefaultBatchSize is the number of chunks embedded and indexed per step.
// It is unrelated to the provider's own request batching.
const DefaultBatchSize = 500

// ErrNoChunks is returned when there is nothing to embed.
var ErrNoChunks = errors.New("no chunks to index")

// Progress reports how many chunks have been embedded and indexed.
type Progress struct {
	Processed int
	Total     int
}

// Percent returns Processed as a percentage of Total.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Processed) * 100 / float64(p.Total)
}

// ProgressFunc is called after every batch, from the goroutine running EmbedAndIndex.
type ProgressFunc func(Progress)

// BatcherConfig configures a Batcher.
type BatcherConfig struct {
	BatchSize int    // Chunks per batch; defaults to DefaultBatchSize
	Location  string // Where the finished index is saved
	Progress  ProgressFunc
}

// Batcher embeds chunks in fixed-size batches and builds the vector index from them.
type Batcher struct {
	provider embedding.Provider
	store    storage.Store
	cfg      BatcherConfig
	logger   *slog.Logger
}

// NewBatcher creates a batcher that embeds with provider and saves to store.
func NewBatcher(provider embedding.Provider, store storage.Store, cfg BatcherConfig, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Batcher{
		provider: provider,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// EmbedAndIndex embeds every chunk and saves the resulting index once all
// batches have been added. The first batch creates the index and fixes its
// dimension; later batches are appended in order. Nothing is saved on failure.
func (b *Batcher) EmbedAndIndex(ctx context.Context, chunks []document.Chunk) (*vectorindex.Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	total := len(chunks)
	b.logger.Info("Embedding chunks", "chunks", total, "batch_size", b.cfg.BatchSize, "provider", b.provider.Name())

	var idx *vectorindex.Index
	for start := 0; start < total; start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, total)
		batch := chunks[start:end]

		records, err := b.embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}

		if idx == nil {
			idx, err = vectorindex.New(records)
		} else {
			err = idx.Add(records)
		}
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}

		p := Progress{Processed: end, Total: total}
		b.logger.Info("Indexed batch", "processed", p.Processed, "total", p.Total,
			"percent", fmt.Sprintf("%.1f", p.Percent()))
		if b.cfg.Progress != nil {
			b.cfg.Progress(p)
		}
	}

	idx.SetEmbedder(b.provider.Name())
	if err := b.store.Save(ctx, idx, b.cfg.Location); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}
	return idx, nil
}

func (b *Batcher) embed(ctx context.Context, batch []document.Chunk) ([]vectorindex.Record, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := b.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embeddings: %w: got %d vectors for %d chunks",
			embedding.ErrResponseInvalid, len(vectors), len(batch))
	}

	records := make([]vectorindex.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorindex.Record{Chunk: c, Vector: vectors[i]}
	}
	return records, nil
}
