package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, 3, cfg.Embedding.Concurrency)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 500, cfg.Index.BatchSize)
	assert.Equal(t, "./data/vector_store", cfg.Index.Path)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Server.ServerMode)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.UseFixtures(), "no API key configured")
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedding:
  provider: hash
  hash_dimensions: 256
chunking:
  size: 800
index:
  backend: sqlite
  path: /var/lib/docs/index.db
server:
  port: 8080
`), 0o644))

	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		"CHUNK_SIZE":      "600",
		"SERVER_MODE":     "false",
		"ALLOWED_ORIGINS": "https://a.example, https://b.example",
		"LOG_LEVEL":       "  ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 256, cfg.Embedding.HashDimensions)
	assert.Equal(t, 600, cfg.Chunking.Size, "environment wins over the file")
	assert.Equal(t, 200, cfg.Chunking.Overlap, "unset keys keep their default")
	assert.Equal(t, "sqlite", cfg.Index.Backend)
	assert.Equal(t, "/var/lib/docs/index.db", cfg.IndexLocation())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.ServerMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level, "blank values are ignored")
	assert.False(t, cfg.UseFixtures())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric chunk size", map[string]string{"CHUNK_SIZE": "big"}},
		{"non-boolean server mode", map[string]string{"SERVER_MODE": "sometimes"}},
		{"zero chunk size", map[string]string{"CHUNK_SIZE": "0"}},
		{"overlap as large as chunk", map[string]string{"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"}},
		{"negative overlap", map[string]string{"CHUNK_OVERLAP": "-1"}},
		{"zero index batch", map[string]string{"INDEX_BATCH_SIZE": "0"}},
		{"unknown provider", map[string]string{"EMBEDDING_PROVIDER": "cohere"}},
		{"unknown backend", map[string]string{"INDEX_BACKEND": "redis"}},
		{"unknown corpus source", map[string]string{"CORPUS_SOURCE": "s3"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv("", envMap(tt.env))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: [not, a, map"), 0o644))

	_, err := LoadWithEnv(path, envMap(nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestUseFixtures(t *testing.T) {
	tests := []struct {
		provider, key string
		want          bool
	}{
		{"openai", "", true},
		{"openai", PlaceholderAPIKey, true},
		{"openai", "sk-test", false},
		{"hash", "", false},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Embedding.Provider = tt.provider
		cfg.Embedding.APIKey = tt.key
		assert.Equal(t, tt.want, cfg.UseFixtures(), "%s/%q", tt.provider, tt.key)
	}
}

func TestIndexLocation_Qdrant(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(map[string]string{
		"INDEX_BACKEND":     "qdrant",
		"QDRANT_COLLECTION": "docs_v2",
	}))
	require.NoError(t, err)
	assert.Equal(t, "docs_v2", cfg.IndexLocation())
}
