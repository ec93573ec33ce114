package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/viant/sqlite-vec/vector"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mike-a-ellis/expo-docs-mcp/internal/vectorindex"
)

//go:embed schema.sql
var sqliteSchema string

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps each index in a single SQLite database file.
type SQLiteStore struct {
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite-backed store.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{logger: logger}
}

// Save writes the index to a temp database next to location and renames it into place.
func (s *SQLiteStore) Save(ctx context.Context, idx *vectorindex.Index, location string) error {
	location = filepath.Clean(location)
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp := location + ".tmp-" + uuid.NewString()
	defer os.Remove(tmp)

	if err := s.write(ctx, idx, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, location); err != nil {
		return fmt.Errorf("failed to publish index: %w", err)
	}

	s.logger.Info("Saved vector index", "path", location, "chunks", idx.Len(), "dimension", idx.Dimension())
	return nil
}

func (s *SQLiteStore) write(ctx context.Context, idx *vectorindex.Index, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	records := idx.Records()
	meta := map[string]string{
		"version":    strconv.Itoa(manifestVersion),
		"space":      "cosine",
		"dimension":  strconv.Itoa(idx.Dimension()),
		"count":      strconv.Itoa(len(records)),
		"embedder":   idx.Embedder(),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (seq, key, doc_id, chunk_index, start_pos, end_pos, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for seq, r := range records {
		metaJSON, err := json.Marshal(r.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		blob, err := vector.EncodeEmbedding(r.Vector)
		if err != nil {
			return fmt.Errorf("encoding embedding %s: %w", r.Key(), err)
		}
		_, err = stmt.ExecContext(ctx,
			seq, r.Key(), r.Chunk.ID, r.Chunk.Index, r.Chunk.Start, r.Chunk.End,
			r.Chunk.Content, string(metaJSON), blob)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", r.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// Load reads the index database at location. A missing file is reported as absent.
func (s *SQLiteStore) Load(ctx context.Context, location string) (*vectorindex.Index, bool, error) {
	exists, err := s.Exists(ctx, location)
	if err != nil || !exists {
		return nil, false, err
	}

	db, err := sql.Open("sqlite", location+"?_pragma=query_only(1)")
	if err != nil {
		return nil, false, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	meta := map[string]string{}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading meta: %v", ErrIndexCorrupt, err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("%w: scanning meta: %v", ErrIndexCorrupt, err)
		}
		meta[k] = v
	}
	rows.Close()

	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil {
		return nil, false, fmt.Errorf("%w: invalid dimension %q", ErrIndexCorrupt, meta["dimension"])
	}
	count, err := strconv.Atoi(meta["count"])
	if err != nil || count < 0 {
		return nil, false, fmt.Errorf("%w: invalid count %q", ErrIndexCorrupt, meta["count"])
	}

	rows, err = db.QueryContext(ctx, `
		SELECT key, doc_id, chunk_index, start_pos, end_pos, content, metadata, embedding
		FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading chunks: %v", ErrIndexCorrupt, err)
	}
	defer rows.Close()

	// count is only trusted once the rows agree with it
	records := make([]vectorindex.Record, 0, min(count, 4096))
	for rows.Next() {
		var (
			c        storedChunk
			metaJSON string
			blob     []byte
		)
		if err := rows.Scan(&c.Key, &c.ID, &c.Index, &c.Start, &c.End, &c.Content, &metaJSON, &blob); err != nil {
			return nil, false, fmt.Errorf("%w: scanning chunk: %v", ErrIndexCorrupt, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, false, fmt.Errorf("%w: chunk %s metadata: %v", ErrIndexCorrupt, c.Key, err)
		}
		vec, err := vector.DecodeEmbedding(blob)
		if err != nil {
			return nil, false, fmt.Errorf("%w: chunk %s: %v", ErrIndexCorrupt, c.Key, err)
		}
		records = append(records, c.record(vec))
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("%w: iterating chunks: %v", ErrIndexCorrupt, err)
	}
	if len(records) != count {
		return nil, false, fmt.Errorf("%w: meta count %d, found %d chunks", ErrIndexCorrupt, count, len(records))
	}

	idx, err := rebuild(dim, meta["embedder"], records)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

// Exists reports whether location is a regular file.
func (s *SQLiteStore) Exists(_ context.Context, location string) (bool, error) {
	info, err := os.Stat(location)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", location, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%w: %s is a directory", ErrIndexCorrupt, location)
	}
	return true, nil
}

// Close is a no-op.
func (s *SQLiteStore) Close() error { return nil }
