// Package indexer builds the vector index from a documentation corpus.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/chunking"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/corpus"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/segment"
)

// BuildResult contains statistics about a build.
type BuildResult struct {
	Files       int
	Documents   int
	Chunks      int
	FailedFiles []segment.FailedFile
	Location    string
	Duration    time.Duration
}

// Pipeline sequences the build: list files, segment, chunk, embed and save.
type Pipeline struct {
	source    corpus.Source
	segmenter *segment.Segmenter
	splitter  *chunking.Splitter
	batcher   *Batcher
	logger    *slog.Logger
}

// NewPipeline creates a build pipeline with the given components.
func NewPipeline(
	source corpus.Source,
	segmenter *segment.Segmenter,
	splitter *chunking.Splitter,
	batcher *Batcher,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:    source,
		segmenter: segmenter,
		splitter:  splitter,
		batcher:   batcher,
		logger:    logger,
	}
}

// Build runs the whole pipeline once and replaces the saved index.
// Files that fail to segment are reported in the result and skipped.
func (p *Pipeline) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{Location: p.batcher.cfg.Location}

	// 1. List corpus files
	files, err := p.source.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	result.Files = len(files)
	p.logger.Info("Starting build", "files", len(files), "location", result.Location)

	// 2. Segment into logical documents
	docs, failed, err := p.segmenter.SegmentAll(ctx, p.source, files)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	result.Documents = len(docs)
	result.FailedFiles = failed
	p.logger.Info("Segmented files", "documents", len(docs), "failed", len(failed))

	// 3. Chunk
	chunks := p.splitter.ChunkDocuments(docs)
	result.Chunks = len(chunks)
	p.logger.Info("Chunked documents", "chunks", len(chunks),
		"chunk_size", p.splitter.ChunkSize(), "overlap", p.splitter.Overlap())

	// 4. Embed, index and save
	if _, err := p.batcher.EmbedAndIndex(ctx, chunks); err != nil {
		return nil, fmt.Errorf("embed and index: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Build complete",
		"documents", result.Documents,
		"failed", len(result.FailedFiles),
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return result, nil
}
