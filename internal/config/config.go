// Package config builds the process configuration from defaults, an optional
// YAML file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a setting is malformed or out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// PlaceholderAPIKey is the example key shipped in .env templates. It counts as unset.
const PlaceholderAPIKey = "your_openai_api_key_here"

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	BatchSize         int     `yaml:"batch_size"`
	Concurrency       int     `yaml:"concurrency"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	HashDimensions    int     `yaml:"hash_dimensions"`
}

// ChunkingConfig sizes chunks in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IndexConfig controls index construction and where it is stored.
type IndexConfig struct {
	BatchSize int    `yaml:"batch_size"`
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
}

// QdrantConfig holds connection settings for the qdrant backend.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// GitHubConfig locates the documentation inside a GitHub repository.
type GitHubConfig struct {
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	Ref      string `yaml:"ref"`
	BasePath string `yaml:"base_path"`
	Token    string `yaml:"token"`
	APIURL   string `yaml:"api_url"`
}

// CorpusConfig describes where documentation files come from.
type CorpusConfig struct {
	Source      string       `yaml:"source"`
	Path        string       `yaml:"path"`
	Name        string       `yaml:"name"`
	RepoBaseURL string       `yaml:"repo_base_url"`
	GitHub      GitHubConfig `yaml:"github"`
}

// ServerConfig configures the HTTP and MCP server.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	ServerMode     bool     `yaml:"server_mode"`
	MCPConfigPath  string   `yaml:"mcp_config_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete process configuration. It is built once at startup
// and passed to the components that need it.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Index     IndexConfig     `yaml:"index"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			BatchSize:      32,
			Concurrency:    3,
			MaxRetries:     6,
			HashDimensions: 1024,
		},
		Chunking: ChunkingConfig{Size: 1000, Overlap: 200},
		Index: IndexConfig{
			BatchSize: 500,
			Backend:   "file",
			Path:      "./data/vector_store",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "expo_docs",
		},
		Corpus: CorpusConfig{
			Source:      "local",
			Path:        "./docs-source",
			Name:        "expo-repository",
			RepoBaseURL: "https://github.com/expo/expo/blob/main/",
			GitHub: GitHubConfig{
				Owner:    "expo",
				Repo:     "expo",
				Ref:      "main",
				BasePath: "docs",
			},
		},
		Server: ServerConfig{
			Port:           3000,
			ServerMode:     true,
			MCPConfigPath:  "mcp-config.json",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// process environment. An empty path or a missing file is not an error.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
			}
		}
	}

	if err := applyEnv(cfg, env{lookup}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, e env) error {
	e.str("OPENAI_API_KEY", &cfg.Embedding.APIKey)
	e.str("OPENAI_BASE_URL", &cfg.Embedding.BaseURL)
	e.str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	e.str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	e.str("INDEX_BACKEND", &cfg.Index.Backend)
	e.str("VECTOR_STORE_PATH", &cfg.Index.Path)
	e.str("QDRANT_HOST", &cfg.Qdrant.Host)
	e.str("QDRANT_API_KEY", &cfg.Qdrant.APIKey)
	e.str("QDRANT_COLLECTION", &cfg.Qdrant.Collection)
	e.str("CORPUS_SOURCE", &cfg.Corpus.Source)
	e.str("DOCS_SOURCE_PATH", &cfg.Corpus.Path)
	e.str("CORPUS_SOURCE_NAME", &cfg.Corpus.Name)
	e.str("REPO_BASE_URL", &cfg.Corpus.RepoBaseURL)
	e.str("GITHUB_OWNER", &cfg.Corpus.GitHub.Owner)
	e.str("GITHUB_REPO", &cfg.Corpus.GitHub.Repo)
	e.str("GITHUB_REF", &cfg.Corpus.GitHub.Ref)
	e.str("GITHUB_BASE_PATH", &cfg.Corpus.GitHub.BasePath)
	e.str("GITHUB_TOKEN", &cfg.Corpus.GitHub.Token)
	e.str("GITHUB_API_URL", &cfg.Corpus.GitHub.APIURL)
	e.str("MCP_CONFIG_PATH", &cfg.Server.MCPConfigPath)
	e.str("LOG_LEVEL", &cfg.Log.Level)
	e.str("LOG_FORMAT", &cfg.Log.Format)

	if v, ok := e.get("ALLOWED_ORIGINS"); ok {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	return errors.Join(
		e.integer("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions),
		e.integer("EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize),
		e.integer("EMBEDDING_CONCURRENCY", &cfg.Embedding.Concurrency),
		e.integer("EMBEDDING_MAX_RETRIES", &cfg.Embedding.MaxRetries),
		e.number("EMBEDDING_REQUESTS_PER_SECOND", &cfg.Embedding.RequestsPerSecond),
		e.integer("HASH_DIMENSIONS", &cfg.Embedding.HashDimensions),
		e.integer("CHUNK_SIZE", &cfg.Chunking.Size),
		e.integer("CHUNK_OVERLAP", &cfg.Chunking.Overlap),
		e.integer("INDEX_BATCH_SIZE", &cfg.Index.BatchSize),
		e.integer("QDRANT_PORT", &cfg.Qdrant.Port),
		e.boolean("QDRANT_USE_TLS", &cfg.Qdrant.UseTLS),
		e.integer("PORT", &cfg.Server.Port),
		e.boolean("SERVER_MODE", &cfg.Server.ServerMode),
	)
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Chunking.Size <= 0 {
		bad("chunk size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		bad("chunk overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Index.BatchSize <= 0 {
		bad("index batch size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Embedding.BatchSize <= 0 {
		bad("embedding batch size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.Concurrency <= 0 {
		bad("embedding concurrency must be positive, got %d", c.Embedding.Concurrency)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		bad("embedding requests per second must not be negative, got %g", c.Embedding.RequestsPerSecond)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "openai", "hash":
	default:
		bad("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch strings.ToLower(c.Index.Backend) {
	case "file", "sqlite":
		if c.Index.Path == "" {
			bad("index path must be set for the %s backend", c.Index.Backend)
		}
	case "qdrant":
		if c.Qdrant.Collection == "" {
			bad("qdrant collection must be set")
		}
	default:
		bad("unknown index backend %q", c.Index.Backend)
	}
	switch strings.ToLower(c.Corpus.Source) {
	case "local", "github":
	default:
		bad("unknown corpus source %q", c.Corpus.Source)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		bad("port out of range: %d", c.Server.Port)
	}

	return errors.Join(errs...)
}

// UseFixtures reports whether queries should be answered from fixed fixture
// documents because no real embedding credential is configured.
func (c *Config) UseFixtures() bool {
	if !strings.EqualFold(c.Embedding.Provider, "openai") {
		return false
	}
	key := strings.TrimSpace(c.Embedding.APIKey)
	return key == "" || key == PlaceholderAPIKey
}

// IndexLocation returns the backend-specific location of the index:
// the collection name for qdrant, the filesystem path otherwise.
func (c *Config) IndexLocation() string {
	if strings.EqualFold(c.Index.Backend, "qdrant") {
		return c.Qdrant.Collection
	}
	return c.Index.Path
}

type env struct {
	lookup LookupFunc
}

func (e env) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e env) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e env) integer(key string, dst *int) error {
	v, ok := e.get(key)
	if !ok {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	*dst = i
	return nil
}

func (e env) number(key string, dst *float64) error {
	v, ok := e.get(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
	}
	*dst = f
	return nil
}

func (e env) boolean(key string, dst *bool) error {
	v, ok := e.get(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
