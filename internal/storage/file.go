package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/vectorindex"
)

// Files written inside a file-backed index directory.
const (
	ManifestFile = "args.json"
	DocstoreFile = "docstore.json"
	VectorsFile  = "vectors.bin"
)

const manifestVersion = 1

// manifest describes the index held in a directory.
type manifest struct {
	Version   int       `json:"version"`
	Space     string    `json:"space"`
	Dimension int       `json:"numDimensions"`
	Count     int       `json:"count"`
	Embedder  string    `json:"embedder,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

var _ Store = (*FileStore)(nil)

// FileStore keeps each index in its own directory on the local filesystem.
type FileStore struct {
	logger *slog.Logger
}

// NewFileStore creates a filesystem-backed store.
func NewFileStore(logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{logger: logger}
}

// Save writes the index to a sibling temp directory and renames it over location.
func (s *FileStore) Save(ctx context.Context, idx *vectorindex.Index, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	location = filepath.Clean(location)
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	suffix := uuid.NewString()
	tmp := location + ".tmp-" + suffix
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	records := idx.Records()
	chunks := make([]storedChunk, len(records))
	for i, r := range records {
		chunks[i] = toStored(r)
	}

	m := manifest{
		Version:   manifestVersion,
		Space:     "cosine",
		Dimension: idx.Dimension(),
		Count:     len(records),
		Embedder:  idx.Embedder(),
		CreatedAt: time.Now().UTC(),
	}
	if err := writeJSON(filepath.Join(tmp, ManifestFile), m); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, DocstoreFile), chunks); err != nil {
		return err
	}
	vectors, err := idx.MarshalVectors()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmp, VectorsFile), vectors, 0o644); err != nil {
		return fmt.Errorf("failed to write vectors: %w", err)
	}

	// Swap directories: move the old index aside, move the new one in
	old := location + ".old-" + suffix
	hadOld := false
	if _, err := os.Stat(location); err == nil {
		if err := os.Rename(location, old); err != nil {
			return fmt.Errorf("failed to move previous index aside: %w", err)
		}
		hadOld = true
	}
	if err := os.Rename(tmp, location); err != nil {
		if hadOld {
			_ = os.Rename(old, location)
		}
		return fmt.Errorf("failed to publish index: %w", err)
	}
	if hadOld {
		if err := os.RemoveAll(old); err != nil {
			s.logger.Warn("Failed to remove previous index", "path", old, "error", err)
		}
	}

	s.logger.Info("Saved vector index", "path", location, "chunks", len(records), "dimension", idx.Dimension())
	return nil
}

// Load reads an index directory. A missing directory is reported as absent.
func (s *FileStore) Load(ctx context.Context, location string) (*vectorindex.Index, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	exists, err := s.Exists(ctx, location)
	if err != nil || !exists {
		return nil, false, err
	}

	var m manifest
	if err := readJSON(filepath.Join(location, ManifestFile), &m); err != nil {
		return nil, false, err
	}
	var chunks []storedChunk
	if err := readJSON(filepath.Join(location, DocstoreFile), &chunks); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(filepath.Join(location, VectorsFile))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	keys, vectors, err := vectorindex.UnmarshalVectors(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}

	if len(chunks) != m.Count || len(keys) != m.Count {
		return nil, false, fmt.Errorf("%w: manifest count %d, docstore %d, vectors %d",
			ErrIndexCorrupt, m.Count, len(chunks), len(keys))
	}

	records := make([]vectorindex.Record, len(chunks))
	for i, c := range chunks {
		if c.Key != keys[i] {
			return nil, false, fmt.Errorf("%w: entry %d is %q in docstore but %q in vectors",
				ErrIndexCorrupt, i, c.Key, keys[i])
		}
		records[i] = c.record(vectors[i])
	}

	idx, err := rebuild(m.Dimension, m.Embedder, records)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

// Exists reports whether location is a non-empty directory.
// An empty directory, as created ahead of the first build, holds no index.
func (s *FileStore) Exists(_ context.Context, location string) (bool, error) {
	info, err := os.Stat(location)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", location, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s is not a directory", ErrIndexCorrupt, location)
	}
	entries, err := os.ReadDir(location)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", location, err)
	}
	return len(entries) > 0, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, filepath.Base(path), err)
	}
	return nil
}
