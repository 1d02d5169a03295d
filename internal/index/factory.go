package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// Env variable names for index backend selection.
const (
	// EnvBackend selects the index backend: "local" (default) or "qdrant".
	EnvBackend = "INDEX_BACKEND"
	// EnvPath overrides the local index database path.
	EnvPath = "INDEX_PATH"
	// EnvQdrantHost is the Qdrant server hostname.
	EnvQdrantHost = "QDRANT_HOST"
	// EnvQdrantPort is the Qdrant gRPC port.
	EnvQdrantPort = "QDRANT_PORT"
	// EnvQdrantCollection is the Qdrant collection name.
	EnvQdrantCollection = "QDRANT_COLLECTION"
	// EnvQdrantAPIKey is the optional Qdrant API key.
	EnvQdrantAPIKey = "QDRANT_API_KEY"
	// EnvQdrantTLS enables TLS for the Qdrant connection ("true"/"false").
	EnvQdrantTLS = "QDRANT_TLS"
)

// DefaultDataDir returns the default directory for local index state.
// It resolves to ~/.ragchat, creating the directory if needed.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("index: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("index: could not create %s: %w", dir, err)
	}
	return dir, nil
}

// NewFromEnv builds the vector index and document catalog selected by the
// environment, bound to the given embedding model and dimension. The local
// backend doubles as its own catalog; the Qdrant backend is paired with a
// SQLite catalog and its Stats are enriched with the catalog document count.
func NewFromEnv(ctx context.Context, model string, dimension int) (rag.VectorIndex, Catalog, error) {
	backend := os.Getenv(EnvBackend)
	if backend == "" {
		backend = "local"
	}

	switch backend {
	case "local":
		path := os.Getenv(EnvPath)
		if path == "" {
			dir, err := DefaultDataDir()
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(dir, "index.db")
		}
		idx, err := Open(path, model, dimension)
		if err != nil {
			return nil, nil, err
		}
		return idx, idx, nil

	case "qdrant":
		port := 0
		if raw := os.Getenv(EnvQdrantPort); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("index: invalid %s %q: %w", EnvQdrantPort, raw, rag.ErrConfig)
			}
			port = p
		}
		useTLS := os.Getenv(EnvQdrantTLS) == "true"

		remote, err := NewQdrantIndex(ctx, &QdrantConfig{
			Host:       os.Getenv(EnvQdrantHost),
			Port:       port,
			Collection: os.Getenv(EnvQdrantCollection),
			Model:      model,
			Dimension:  dimension,
			APIKey:     os.Getenv(EnvQdrantAPIKey),
			UseTLS:     useTLS,
		})
		if err != nil {
			return nil, nil, err
		}

		dir, err := DefaultDataDir()
		if err != nil {
			_ = remote.Close()
			return nil, nil, err
		}
		catalog, err := OpenCatalog(filepath.Join(dir, "catalog.db"))
		if err != nil {
			_ = remote.Close()
			return nil, nil, err
		}
		// Qdrant stores no model identifier; the catalog binds it so a
		// swapped embedder is caught on open, not at upsert time.
		if err := catalog.BindModel(model, dimension); err != nil {
			_ = remote.Close()
			_ = catalog.Close()
			return nil, nil, err
		}
		return &catalogedIndex{QdrantIndex: remote, catalog: catalog}, catalog, nil

	default:
		return nil, nil, fmt.Errorf("index: unknown backend %q (want local or qdrant): %w", backend, rag.ErrConfig)
	}
}

// catalogedIndex pairs a remote index with the local catalog so Stats can
// report the document count and Close releases both resources.
type catalogedIndex struct {
	*QdrantIndex
	catalog *SQLiteCatalog
}

func (x *catalogedIndex) Stats(ctx context.Context) (rag.IndexStats, error) {
	stats, err := x.QdrantIndex.Stats(ctx)
	if err != nil {
		return rag.IndexStats{}, err
	}
	records, err := x.catalog.Documents(ctx)
	if err != nil {
		return rag.IndexStats{}, err
	}
	stats.Documents = len(records)
	return stats, nil
}

func (x *catalogedIndex) Close() error {
	err := x.QdrantIndex.Close()
	if cerr := x.catalog.Close(); err == nil {
		err = cerr
	}
	return err
}
