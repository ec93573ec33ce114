package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// EmbeddingModel is the default OpenAI model used for generating embeddings.
	EmbeddingModel = "text-embedding-3-small"

	// EmbeddingDimension is the vector dimension for text-embedding-3-small.
	EmbeddingDimension = 1536

	// DefaultBatchSize is the number of texts sent in one embeddings request.
	DefaultBatchSize = 32

	// DefaultConcurrency is the number of requests in flight at once.
	DefaultConcurrency = 3

	// DefaultMaxRetries is the retry budget for each request.
	DefaultMaxRetries = 6
)

var _ Provider = (*Embedder)(nil)

// EmbedderConfig tunes request batching, concurrency and retries.
// Zero values select the defaults.
type EmbedderConfig struct {
	Model             string
	Dimensions        int
	BatchSize         int
	Concurrency       int
	MaxRetries        int
	RequestsPerSecond float64 // 0 disables client-side rate limiting
}

// Embedder generates embeddings through the OpenAI embeddings API.
// Texts are sent in batches, several batches in flight, and failed
// requests are retried with exponential backoff when the error is transient.
type Embedder struct {
	client  *Client
	cfg     EmbedderConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	// Backoff intervals
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewEmbedder creates a new Embedder with the given client and configuration.
func NewEmbedder(client *Client, cfg EmbedderConfig, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = EmbeddingModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	e := &Embedder{
		client:          client,
		cfg:             cfg,
		logger:          logger,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency)
	}
	return e
}

// Name returns the identifier of this provider.
func (e *Embedder) Name() string { return ProviderOpenAI + ":" + e.cfg.Model }

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatchWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts, returning vectors in input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i := 0; i < len(texts); i += e.cfg.BatchSize {
		start := i
		end := min(i+e.cfg.BatchSize, len(texts))

		g.Go(func() error {
			vectors, err := e.embedBatchWithRetry(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Rate limits, server errors and transport failures are retried; other API
// errors fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	attempt := 0

	operation := func() error {
		attempt++
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		params := openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model:          openai.EmbeddingModel(e.cfg.Model),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		}
		if e.cfg.Dimensions > 0 {
			params.Dimensions = openai.Int(int64(e.cfg.Dimensions))
		}

		resp, err := e.client.client.Embeddings.New(ctx, params)
		if err != nil {
			if ctx.Err() != nil || !isRetryable(err) {
				return backoff.Permanent(err)
			}
			e.logger.Warn("Embedding request failed, retrying", "attempt", attempt, "texts", len(texts), "error", err)
			return err
		}

		vectors, err := orderEmbeddings(resp.Data, len(texts))
		if err != nil {
			return backoff.Permanent(err)
		}
		embeddings = vectors
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialInterval
	b.MaxInterval = e.maxInterval
	b.MaxElapsedTime = 0 // bounded by the retry count

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxRetries)), ctx))
	return embeddings, err
}

// orderEmbeddings places each embedding at its reported input index.
func orderEmbeddings(data []openai.Embedding, n int) ([][]float32, error) {
	if len(data) != n {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrResponseInvalid, len(data), n)
	}
	out := make([][]float32, n)
	for _, d := range data {
		if d.Index < 0 || int(d.Index) >= n || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", ErrResponseInvalid, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrResponseInvalid, d.Index)
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	return out, nil
}

// isRetryable reports whether err is a rate limit, a server error or a transport failure.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but the index stores float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
