// Package query answers similarity queries against the saved vector index.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/embedding"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/storage"
)

// DefaultMaxResults is used when a query does not ask for a positive number of results.
const DefaultMaxResults = 5

// ErrIndexNotInitialized is returned when no usable index has been saved.
// Load failures caused by corruption wrap both this and storage.ErrIndexCorrupt.
var ErrIndexNotInitialized = errors.New("index not initialized")

// Retriever returns the documents most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, text string, maxResults int) ([]document.Document, error)
}

var _ Retriever = (*Engine)(nil)

// Engine loads the saved index on every call and searches it.
type Engine struct {
	store    storage.Store
	location string
	provider embedding.Provider
	logger   *slog.Logger
}

// NewEngine creates a query engine reading the index at location from store.
func NewEngine(store storage.Store, location string, provider embedding.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		location: location,
		provider: provider,
		logger:   logger,
	}
}

// Retrieve embeds text and returns up to maxResults chunk hits ordered by
// decreasing similarity. Each hit's metadata path is the owning file's
// relative path.
func (e *Engine) Retrieve(ctx context.Context, text string, maxResults int) ([]document.Document, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	idx, found, err := e.store.Load(ctx, e.location)
	if err != nil {
		if errors.Is(err, storage.ErrIndexCorrupt) {
			e.logger.Error("Failed to load index", "location", e.location, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrIndexNotInitialized, err)
		}
		return nil, fmt.Errorf("load index: %w", err)
	}
	if !found {
		return nil, ErrIndexNotInitialized
	}
	if idx.Len() == 0 {
		return []document.Document{}, nil
	}

	if built := idx.Embedder(); built != "" && built != e.provider.Name() {
		e.logger.Warn("Index was built with a different embedding provider",
			"index", built, "current", e.provider.Name())
	}

	vector, err := e.provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := idx.Search(vector, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	docs := make([]document.Document, len(hits))
	for i, hit := range hits {
		meta := hit.Chunk.Metadata
		meta.Path = NormalizePath(hit.Chunk.ID)
		docs[i] = document.Document{
			ID:       hit.Chunk.ID,
			Content:  hit.Chunk.Content,
			Metadata: meta,
		}
	}
	e.logger.Debug("Query complete", "query", text, "hits", len(docs))
	return docs, nil
}

const commentMarker = "-comment-"

// NormalizePath recovers a file's relative path from a document ID by
// removing a trailing "-comment-{n}" suffix.
func NormalizePath(id string) string {
	i := strings.LastIndex(id, commentMarker)
	if i < 0 {
		return id
	}
	suffix := id[i+len(commentMarker):]
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return id
	}
	return id[:i]
}
