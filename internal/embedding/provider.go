// Package embedding turns text into dense vectors for similarity search.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

var (
	ErrUnknownProvider = errors.New("unknown embedding provider")
	ErrMissingAPIKey   = errors.New("embedding provider API key not set")
	ErrResponseInvalid = errors.New("embedding response invalid")
)

// Provider embeds documents and queries. Vectors for documents are returned in input order.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Options selects and tunes a provider.
type Options struct {
	Provider string

	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	BatchSize         int
	Concurrency       int
	MaxRetries        int
	RequestsPerSecond float64
}

// New creates the provider named by opts.Provider. An empty name selects OpenAI.
func New(opts Options, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderOpenAI:
		client, err := NewClient(opts.APIKey, opts.BaseURL)
		if err != nil {
			return nil, err
		}
		return NewEmbedder(client, EmbedderConfig{
			Model:             opts.Model,
			Dimensions:        opts.Dimensions,
			BatchSize:         opts.BatchSize,
			Concurrency:       opts.Concurrency,
			MaxRetries:        opts.MaxRetries,
			RequestsPerSecond: opts.RequestsPerSecond,
		}, logger), nil
	case ProviderHash:
		return NewHashEmbedder(opts.Dimensions), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}
