// Package storage persists vector indexes and loads them back for querying.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/vectorindex"
)

// Supported backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// Store saves and loads a vector index at a backend-specific location:
// a directory for BackendFile, a database file for BackendSQLite and a
// collection name for BackendQdrant.
type Store interface {
	// Save persists idx at location, replacing any previous index there.
	// Readers never observe a partially written index.
	Save(ctx context.Context, idx *vectorindex.Index, location string) error

	// Load reads the index at location. The boolean is false, with a nil
	// error, when nothing has been saved there yet.
	Load(ctx context.Context, location string) (*vectorindex.Index, bool, error)

	// Exists reports whether an index has been saved at location.
	Exists(ctx context.Context, location string) (bool, error)

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string

	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantUseTLS bool
}

// Open creates the store for opts.Backend. An empty backend selects BackendFile.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileStore(logger), nil
	case BackendSQLite:
		return NewSQLiteStore(logger), nil
	case BackendQdrant:
		return NewQdrantStorage(ctx, QdrantConfig{
			Host:   opts.QdrantHost,
			Port:   opts.QdrantPort,
			APIKey: opts.QdrantAPIKey,
			UseTLS: opts.QdrantUseTLS,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// storedChunk is the persisted form of a chunk and its position in the index.
type storedChunk struct {
	Key      string            `json:"key"`
	ID       string            `json:"id"`
	Index    int               `json:"chunkIndex"`
	Start    int               `json:"start"`
	End      int               `json:"end"`
	Content  string            `json:"content"`
	Metadata document.Metadata `json:"metadata"`
}

func toStored(r vectorindex.Record) storedChunk {
	return storedChunk{
		Key:      r.Key(),
		ID:       r.Chunk.ID,
		Index:    r.Chunk.Index,
		Start:    r.Chunk.Start,
		End:      r.Chunk.End,
		Content:  r.Chunk.Content,
		Metadata: r.Chunk.Metadata,
	}
}

func (c storedChunk) record(vector []float32) vectorindex.Record {
	return vectorindex.Record{
		Chunk: document.Chunk{
			ID:       c.ID,
			Index:    c.Index,
			Start:    c.Start,
			End:      c.End,
			Content:  c.Content,
			Metadata: c.Metadata,
		},
		Vector: vector,
	}
}

// rebuild assembles an index from records loaded in insertion order.
func rebuild(dim int, embedder string, records []vectorindex.Record) (*vectorindex.Index, error) {
	var idx *vectorindex.Index
	if len(records) == 0 {
		idx = vectorindex.NewEmpty(dim)
	} else {
		var err error
		idx, err = vectorindex.New(records)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
		}
		if idx.Dimension() != dim {
			return nil, fmt.Errorf("%w: vectors have %d dimensions, manifest says %d", ErrIndexCorrupt, idx.Dimension(), dim)
		}
	}
	idx.SetEmbedder(embedder)
	return idx, nil
}
