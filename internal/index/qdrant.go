package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// Model is the embedding model identifier bound to the collection.
	Model string

	// Dimension is the dimensionality of the stored embeddings.
	Dimension int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements rag.VectorIndex backed by a Qdrant instance.
// Chunk IDs are mapped to deterministic UUIDs so upserts of the same chunk
// replace the existing point.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a new QdrantIndex, ensuring the target collection
// exists (creating it with cosine distance if necessary).
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Model == "" || cfg.Dimension <= 0 {
		return nil, fmt.Errorf("index: qdrant model and dimension are required: %w", rag.ErrConfig)
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "ragchat"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already
// exist. An existing collection must store vectors of the active embedder's
// dimension; a mismatch means it was built by a different embedding
// configuration and is unusable as-is.
func (x *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.cfg.Collection)
	if err != nil {
		return fmt.Errorf("index: qdrant collection check: %w", err)
	}
	if exists {
		info, err := x.client.GetCollectionInfo(ctx, x.cfg.Collection)
		if err != nil {
			return fmt.Errorf("index: qdrant collection info: %w", err)
		}
		return validateCollectionDimension(x.cfg.Collection, info, x.cfg.Dimension)
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(x.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant create collection %q: %w", x.cfg.Collection, err)
	}
	return nil
}

// validateCollectionDimension checks an existing collection's vector size
// against the active embedder's dimension.
func validateCollectionDimension(name string, info *qdrant.CollectionInfo, dimension int) error {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("index: qdrant collection %q has no single-vector configuration: %w",
			name, rag.ErrCorruptIndex)
	}
	if params.GetSize() != uint64(dimension) { //nolint:gosec // dimension validated positive at construction
		return fmt.Errorf("index: qdrant collection %q stores %d-dimension vectors, embedder produces %d: %w",
			name, params.GetSize(), dimension, rag.ErrCorruptIndex)
	}
	return nil
}

// pointID derives the deterministic Qdrant point UUID for a chunk.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// Upsert stores or replaces a batch of entries with their embeddings.
func (x *QdrantIndex) Upsert(ctx context.Context, entries []rag.IndexEntry) error {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if e.Model != x.cfg.Model {
			return fmt.Errorf("index: entry %s embedded with model %s, collection bound to %s: %w",
				e.ChunkID, e.Model, x.cfg.Model, rag.ErrIndexConsistency)
		}
		if len(e.Vector) != x.cfg.Dimension {
			return fmt.Errorf("index: entry %s has dimension %d, collection bound to %d: %w",
				e.ChunkID, len(e.Vector), x.cfg.Dimension, rag.ErrIndexConsistency)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(e.ChunkID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":    e.ChunkID,
				"document_id": e.DocumentID,
				"source_path": e.SourcePath,
				"seq":         e.Seq,
				"start":       e.Start,
				"end":         e.End,
				"text":        e.Text,
			}),
		})
	}

	if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.cfg.Collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("index: qdrant upsert: %w", err)
	}
	return nil
}

// DeleteByDocument removes every point whose payload names the document.
func (x *QdrantIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("index: qdrant delete document %s: %w", documentID, err)
	}
	return nil
}

// Query performs a cosine similarity search and returns the top k entries.
func (x *QdrantIndex) Query(ctx context.Context, vector []float32, k int) (rag.RetrievalResult, error) {
	if len(vector) != x.cfg.Dimension {
		return nil, fmt.Errorf("index: query vector has dimension %d, collection bound to %d: %w",
			len(vector), x.cfg.Dimension, rag.ErrIndexConsistency)
	}
	if k <= 0 {
		return rag.RetrievalResult{}, nil
	}

	limit := uint64(k)
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant query: %w", err)
	}

	scored := make(rag.RetrievalResult, 0, len(results))
	for _, r := range results {
		e := rag.IndexEntry{Model: x.cfg.Model}
		if p := r.Payload; p != nil {
			e.ChunkID = p["chunk_id"].GetStringValue()
			e.DocumentID = p["document_id"].GetStringValue()
			e.SourcePath = p["source_path"].GetStringValue()
			e.Seq = int(p["seq"].GetIntegerValue())
			e.Start = int(p["start"].GetIntegerValue())
			e.End = int(p["end"].GetIntegerValue())
			e.Text = p["text"].GetStringValue()
		}
		scored = append(scored, rag.Scored{Entry: e, Score: r.Score})
	}

	// Qdrant orders by score; re-rank for deterministic tie-breaking.
	rank(scored)
	return scored, nil
}

// Stats reports the collection point count. Document counts come from the
// catalog, which the factory layers on top of remote backends.
func (x *QdrantIndex) Stats(ctx context.Context) (rag.IndexStats, error) {
	count, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.cfg.Collection,
	})
	if err != nil {
		return rag.IndexStats{}, fmt.Errorf("index: qdrant count: %w", err)
	}
	return rag.IndexStats{
		Entries:   int(count),
		Model:     x.cfg.Model,
		Dimension: x.cfg.Dimension,
	}, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}
