package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/vectorindex"
)

// Qdrant defaults
const (
	DefaultQdrantHost = "localhost"
	DefaultQdrantPort = 6334

	vectorName      = "content"
	upsertBatchSize = 100
	scrollBatchSize = 256
)

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

var _ Store = (*QdrantStorage)(nil)

// QdrantStorage persists each index as a Qdrant collection reached through an
// alias named by the location.
type QdrantStorage struct {
	client *qdrant.Client
	logger *slog.Logger

	upsert func(ctx context.Context, collection string, points []*qdrant.PointStruct) error

	// Retry policy for health checks and upserts
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsed      time.Duration
}

// NewQdrantStorage creates a Qdrant client and waits for the server to become healthy.
// It fails fast with ErrQdrantUnreachable if the server never answers.
func NewQdrantStorage(ctx context.Context, cfg QdrantConfig, logger *slog.Logger) (*QdrantStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = DefaultQdrantHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultQdrantPort
	}

	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:          client,
		logger:          logger,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
		maxElapsed:      30 * time.Second,
	}
	storage.upsert = storage.upsertWithRetry

	if err := storage.retry(ctx, func() error { return storage.Health(ctx) }); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	logger.Info("Connected to Qdrant", "host", cfg.Host, "port", cfg.Port)
	return storage, nil
}

// retry runs op with exponential backoff.
func (s *QdrantStorage) retry(ctx context.Context, op func() error) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = s.initialInterval
	exponentialBackoff.MaxInterval = s.maxInterval
	exponentialBackoff.MaxElapsedTime = s.maxElapsed

	return backoff.Retry(op, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Save writes the index into a fresh collection and then points the location
// alias at it in one alias update. Readers see either the previous index or the
// new one. A failed save drops its partial collection and leaves the alias alone.
func (s *QdrantStorage) Save(ctx context.Context, idx *vectorindex.Index, location string) error {
	target := generationName(location)
	if err := s.createCollection(ctx, target, idx.Dimension()); err != nil {
		return err
	}
	if err := s.fill(ctx, idx, location, target); err != nil {
		s.dropCollection(target)
		return err
	}

	previous, found, err := s.resolve(ctx, location)
	if err != nil {
		s.dropCollection(target)
		return err
	}

	var actions []*qdrant.AliasOperations
	switch {
	case found && previous == location:
		// An alias cannot shadow a collection of the same name
		s.logger.Warn("Replacing plain collection with alias", "collection", location)
		if err := s.client.DeleteCollection(ctx, location); err != nil {
			s.dropCollection(target)
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	case found:
		actions = append(actions, qdrant.NewAliasDelete(location))
	}
	actions = append(actions, qdrant.NewAliasCreate(location, target))
	if err := s.client.UpdateAliases(ctx, actions); err != nil {
		s.dropCollection(target)
		return fmt.Errorf("failed to switch alias %s: %w", location, err)
	}

	if found && previous != location {
		s.dropCollection(previous)
	}

	s.logger.Info("Saved vector index", "location", location, "collection", target,
		"chunks", idx.Len(), "dimension", idx.Dimension())
	return nil
}

// fill upserts every record into collection in batches.
func (s *QdrantStorage) fill(ctx context.Context, idx *vectorindex.Index, location, collection string) error {
	records := idx.Records()
	for i := 0; i < len(records); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(records))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for seq := i; seq < end; seq++ {
			r := records[seq]
			if len(r.Vector) != idx.Dimension() {
				return fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
					ErrDimensionMismatch, r.Key(), len(r.Vector), idx.Dimension())
			}
			points = append(points, &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(pointID(location, r.Key())),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(r.Vector...),
				}),
				Payload: qdrant.NewValueMap(chunkPayload(seq, idx.Embedder(), r)),
			})
		}

		if err := s.upsert(ctx, collection, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// resolve returns the collection currently serving location: the alias target,
// or a plain collection of that name written before aliases were used.
func (s *QdrantStorage) resolve(ctx context.Context, location string) (string, bool, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == location {
			return a.GetCollectionName(), true, nil
		}
	}

	exists, err := s.client.CollectionExists(ctx, location)
	if err != nil {
		return "", false, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return "", false, nil
	}
	return location, true, nil
}

// dropCollection deletes a collection that is not reachable through an alias.
// It runs on its own context so a cancelled save still cleans up.
func (s *QdrantStorage) dropCollection(collection string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.maxElapsed)
	defer cancel()
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		s.logger.Warn("Failed to delete collection", "collection", collection, "error", err)
	}
}

// createCollection creates an empty collection with keyword payload indexes.
func (s *QdrantStorage) createCollection(ctx context.Context, collection string, dim int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(max(dim, 1)),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Keyword indexes for filtering by owning document
	for _, field := range []string{"doc_id", "path", "type"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			s.dropCollection(collection)
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	return s.retry(ctx, func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
}

// Load scrolls the collection behind location back into an index, in saved order.
func (s *QdrantStorage) Load(ctx context.Context, location string) (*vectorindex.Index, bool, error) {
	collection, found, err := s.resolve(ctx, location)
	if err != nil || !found {
		return nil, false, err
	}

	type loaded struct {
		seq    int64
		record vectorindex.Record
	}
	var (
		points   []loaded
		offset   *qdrant.PointId
		embedder string
		seen     = map[string]bool{}
	)
	for {
		results, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Limit:          qdrant.PtrOf(uint32(scrollBatchSize)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectorsInclude(vectorName),
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to scroll collection: %w", err)
		}

		for _, p := range results {
			id := p.GetId().GetUuid()
			if seen[id] {
				continue
			}
			seen[id] = true

			vec := denseVector(p.GetVectors().GetVectors().GetVectors()[vectorName])
			if len(vec) == 0 {
				return nil, false, fmt.Errorf("%w: point %s has no %q vector", ErrIndexCorrupt, id, vectorName)
			}
			seq, record := payloadRecord(p.GetPayload(), vec)
			if embedder == "" {
				embedder = p.GetPayload()["embedder"].GetStringValue()
			}
			points = append(points, loaded{seq: seq, record: record})
		}

		if next == nil || len(results) == 0 {
			break
		}
		offset = next
	}

	sort.Slice(points, func(i, j int) bool { return points[i].seq < points[j].seq })

	records := make([]vectorindex.Record, len(points))
	for i, p := range points {
		records[i] = p.record
	}

	dim := 0
	if len(records) > 0 {
		dim = len(records[0].Vector)
	}
	idx, err := rebuild(dim, embedder, records)
	if err != nil {
		return nil, false, err
	}
	return idx, true, nil
}

// Exists reports whether an index has been saved at location.
func (s *QdrantStorage) Exists(ctx context.Context, location string) (bool, error) {
	_, found, err := s.resolve(ctx, location)
	return found, err
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// generationName returns a new collection name for one save of location.
func generationName(location string) string {
	return location + "-" + uuid.NewString()[:8]
}

// pointID derives a stable point UUID from the collection and chunk key.
func pointID(collection, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+key)).String()
}

func chunkPayload(seq int, embedder string, r vectorindex.Record) map[string]any {
	m := r.Chunk.Metadata
	return map[string]any{
		"seq":          seq,
		"embedder":     embedder,
		"key":          r.Key(),
		"doc_id":       r.Chunk.ID,
		"chunk_index":  r.Chunk.Index,
		"start":        r.Chunk.Start,
		"end":          r.Chunk.End,
		"content":      r.Chunk.Content,
		"source":       m.Source,
		"path":         m.Path,
		"type":         m.Type,
		"title":        m.Title,
		"url":          m.URL,
		"last_updated": m.LastUpdated,
	}
}

func payloadRecord(payload map[string]*qdrant.Value, vec []float32) (int64, vectorindex.Record) {
	str := func(k string) string { return payload[k].GetStringValue() }
	num := func(k string) int { return int(payload[k].GetIntegerValue()) }

	return payload["seq"].GetIntegerValue(), vectorindex.Record{
		Chunk: document.Chunk{
			ID:      str("doc_id"),
			Index:   num("chunk_index"),
			Start:   num("start"),
			End:     num("end"),
			Content: str("content"),
			Metadata: document.Metadata{
				Source:      str("source"),
				Path:        str("path"),
				Type:        str("type"),
				Title:       str("title"),
				URL:         str("url"),
				LastUpdated: str("last_updated"),
			},
		},
		Vector: vec,
	}
}

// denseVector extracts dense values from either vector output encoding.
func denseVector(v *qdrant.VectorOutput) []float32 {
	if data := v.GetDense().GetData(); len(data) > 0 {
		return data
	}
	return v.GetData() //nolint:staticcheck // older servers only fill the deprecated field
}
