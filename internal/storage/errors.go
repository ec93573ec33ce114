package storage

import "errors"

var (
	ErrIndexCorrupt      = errors.New("persisted index is corrupt")
	ErrUnknownBackend    = errors.New("unknown storage backend")
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
