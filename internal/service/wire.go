package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/chunking"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/config"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/corpus"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/embedding"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/github"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/indexer"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/query"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/segment"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/storage"
)

// FromConfig wires every component described by cfg. When cfg.UseFixtures
// holds, queries are answered from fixtures and builds fail with the
// provider's error. Close releases the store.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.Open(ctx, StorageOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}
	location := cfg.IndexLocation()

	provider, providerErr := embedding.New(EmbeddingOptions(cfg), logger)

	var builder Builder
	if providerErr != nil {
		builder = failingBuilder{err: providerErr}
	} else {
		source, baseURL, err := corpusSource(cfg)
		if err != nil {
			store.Close()
			return nil, err
		}
		batcher := indexer.NewBatcher(provider, store, indexer.BatcherConfig{
			BatchSize: cfg.Index.BatchSize,
			Location:  location,
		}, logger)
		builder = indexer.NewPipeline(
			source,
			segment.NewSegmenter(cfg.Corpus.Name, baseURL, logger),
			chunking.NewSplitter(
				chunking.WithChunkSize(cfg.Chunking.Size),
				chunking.WithOverlap(cfg.Chunking.Overlap),
			),
			batcher,
			logger,
		)
	}

	c := Components{
		Builder:  builder,
		Store:    store,
		Location: location,
	}
	switch {
	case cfg.UseFixtures():
		logger.Warn("No valid OpenAI API key found, answering queries from fixtures")
		c.Retriever = query.FixtureRetriever{}
		c.Fixtures = true
	case providerErr != nil:
		store.Close()
		return nil, fmt.Errorf("create embedding provider: %w", providerErr)
	default:
		c.Retriever = query.NewEngine(store, location, provider, logger)
	}
	return New(c, logger), nil
}

// Close releases the index store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// EmbeddingOptions maps the configuration onto provider options.
func EmbeddingOptions(cfg *config.Config) embedding.Options {
	e := cfg.Embedding
	opts := embedding.Options{
		Provider:          e.Provider,
		APIKey:            e.APIKey,
		BaseURL:           e.BaseURL,
		Model:             e.Model,
		Dimensions:        e.Dimensions,
		BatchSize:         e.BatchSize,
		Concurrency:       e.Concurrency,
		MaxRetries:        e.MaxRetries,
		RequestsPerSecond: e.RequestsPerSecond,
	}
	if strings.EqualFold(e.Provider, embedding.ProviderHash) {
		opts.Dimensions = e.HashDimensions
	}
	return opts
}

// StorageOptions maps the configuration onto store options.
func StorageOptions(cfg *config.Config) storage.Options {
	return storage.Options{
		Backend:      cfg.Index.Backend,
		QdrantHost:   cfg.Qdrant.Host,
		QdrantPort:   cfg.Qdrant.Port,
		QdrantAPIKey: cfg.Qdrant.APIKey,
		QdrantUseTLS: cfg.Qdrant.UseTLS,
	}
}

// corpusSource returns the configured corpus and the URL prefix for its files.
func corpusSource(cfg *config.Config) (corpus.Source, string, error) {
	switch strings.ToLower(cfg.Corpus.Source) {
	case "github":
		gh := cfg.Corpus.GitHub
		client, err := github.NewClient(github.ClientOptions{Token: gh.Token, APIURL: gh.APIURL})
		if err != nil {
			return nil, "", fmt.Errorf("create GitHub client: %w", err)
		}
		fetcher := github.NewFetcher(client, gh.Owner, gh.Repo, gh.Ref, gh.BasePath)
		return fetcher, fetcher.RepoBaseURL(), nil
	default:
		return corpus.NewFSSource(cfg.Corpus.Path), cfg.Corpus.RepoBaseURL, nil
	}
}

type failingBuilder struct {
	err error
}

func (b failingBuilder) Build(context.Context) (*indexer.BuildResult, error) {
	return nil, fmt.Errorf("create embedding provider: %w", b.err)
}
