package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadContent is the payload key holding the chunk text. Every other
// payload key is surfaced as document metadata.
const payloadContent = "content"

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	// An existing collection with a different size is rejected on open.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: %w: collection name must not be empty", ErrStoreAccess)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w: failed to create client: %w", ErrStoreAccess, err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist
// and otherwise checks its vector size against the configured one.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: %w: failed to check collection existence: %w", ErrStoreAccess, err)
	}
	if exists {
		return s.checkVectorSize(ctx)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: %w: failed to create collection %q: %w", ErrStoreAccess, s.cfg.Collection, err)
	}

	return nil
}

// checkVectorSize rejects collections built for a different embedding size.
func (s *QdrantStore) checkVectorSize(ctx context.Context) error {
	if s.cfg.VectorSize == 0 {
		return nil
	}
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: %w: failed to read collection %q: %w", ErrStoreAccess, s.cfg.Collection, err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && size != s.cfg.VectorSize {
		return fmt.Errorf("qdrant: %w: %w: collection %q has vector size %d, embedder produces %d",
			ErrStoreAccess, ErrEmbeddingMismatch, s.cfg.Collection, size, s.cfg.VectorSize)
	}
	return nil
}

// pointID maps a source id onto a deterministic UUID, since Qdrant only
// accepts UUIDs or integers as point ids.
func pointID(sourceID string) string {
	if sourceID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceID)).String()
}

// Upsert stores or updates a batch of documents with their embeddings.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			payloadContent: doc.Content,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc.SourceID())),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: %w: upsert failed: %w", ErrStoreAccess, err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}
	limit := uint64(topK) //nolint:gosec // topK is positive
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w: search failed: %w", ErrStoreAccess, err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, documentFromPayload(r.GetPayload(), r.GetScore()))
	}

	return docs, nil
}

// documentFromPayload rebuilds a Document from a point payload.
func documentFromPayload(p map[string]*qdrant.Value, score float32) Document {
	doc := Document{
		Score:    score,
		Metadata: make(map[string]string, len(p)),
	}
	for k, v := range p {
		if k == payloadContent {
			doc.Content = v.GetStringValue()
			continue
		}
		doc.Metadata[k] = v.GetStringValue()
	}
	return doc
}

// ExistingIDs reports which of ids already have a stored point.
func (s *QdrantStore) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(pointID(id)))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w: lookup failed: %w", ErrStoreAccess, err)
	}
	for _, p := range points {
		if v, ok := p.GetPayload()[MetadataID]; ok {
			found[v.GetStringValue()] = true
		}
	}
	return found, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: %w: count failed: %w", ErrStoreAccess, err)
	}
	return int(n), nil //nolint:gosec // collection sizes fit in int
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
