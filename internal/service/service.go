// Package service is the boundary the CLI and server call: build the index
// once, or answer a query.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/indexer"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/query"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/storage"
)

// ErrEmptyQuery is returned for a blank query string.
var ErrEmptyQuery = errors.New("query is empty")

// Index states reported by IndexStatus.
const (
	IndexReady    = "ready"
	IndexMissing  = "missing"
	IndexFixtures = "fixtures"
	IndexError    = "error"
)

// QueryResult is the answer to one query. Context is never nil.
type QueryResult struct {
	Context []document.Document `json:"context"`
}

// Builder runs a full index build.
type Builder interface {
	Build(ctx context.Context) (*indexer.BuildResult, error)
}

// Service ties the build pipeline and the query path together.
type Service struct {
	builder   Builder
	retriever query.Retriever
	store     storage.Store
	location  string
	fixtures  bool
	logger    *slog.Logger
}

// Components are the collaborators of a Service.
type Components struct {
	Builder   Builder
	Retriever query.Retriever
	Store     storage.Store // Used for IndexStatus; may be nil in fixture mode
	Location  string
	Fixtures  bool // Retriever serves fixture documents
}

// New creates a service from already built components.
func New(c Components, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		builder:   c.Builder,
		retriever: c.Retriever,
		store:     c.Store,
		location:  c.Location,
		fixtures:  c.Fixtures,
		logger:    logger,
	}
}

// Build runs the pipeline once and returns its statistics.
func (s *Service) Build(ctx context.Context) (*indexer.BuildResult, error) {
	return s.builder.Build(ctx)
}

// BuildIndex runs the pipeline once. Failures are logged and reported as false.
func (s *Service) BuildIndex(ctx context.Context) bool {
	result, err := s.Build(ctx)
	if err != nil {
		s.logger.Error("Index build failed", "error", err)
		return false
	}
	s.logger.Info("Index built", "location", result.Location, "chunks", result.Chunks)
	return true
}

// ProcessQuery returns up to maxResults documents relevant to q; maxResults
// of zero or less selects query.DefaultMaxResults. Zero hits is an empty
// context, while retrieval failures such as query.ErrIndexNotInitialized are
// returned as errors.
func (s *Service) ProcessQuery(ctx context.Context, q string, maxResults int) (*QueryResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = query.DefaultMaxResults
	}
	s.logger.Info("Processing query", "query", q, "max_results", maxResults, "fixtures", s.fixtures)

	docs, err := s.retriever.Retrieve(ctx, q, maxResults)
	if err != nil {
		s.logger.Error("Query failed", "query", q, "error", err)
		return nil, err
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return &QueryResult{Context: docs}, nil
}

// IndexStatus reports whether a saved index is available for queries.
func (s *Service) IndexStatus(ctx context.Context) string {
	if s.fixtures {
		return IndexFixtures
	}
	if s.store == nil {
		return IndexMissing
	}
	exists, err := s.store.Exists(ctx, s.location)
	switch {
	case err != nil:
		s.logger.Warn("Failed to check index", "location", s.location, "error", err)
		return IndexError
	case exists:
		return IndexReady
	default:
		return IndexMissing
	}
}
