package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olifarhaan/rag-console-chat/internal/chunker"
	"github.com/olifarhaan/rag-console-chat/internal/embedder"
	"github.com/olifarhaan/rag-console-chat/internal/extract"
	"github.com/olifarhaan/rag-console-chat/internal/index"
	"github.com/olifarhaan/rag-console-chat/internal/pipeline"
	"github.com/olifarhaan/rag-console-chat/internal/prompt"
	"github.com/olifarhaan/rag-console-chat/internal/provider"
	"github.com/olifarhaan/rag-console-chat/internal/retriever"
)

// buildPipeline wires the full dependency graph from environment
// configuration: extractor, chunker, embedder, vector index, retriever,
// prompt assembler, and chat model. The returned cleanup closes the index
// and must be deferred by the caller.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	// The retry hook is bound after the pipeline exists so embedding
	// retries land in the pipeline's metrics. The indirection keeps the
	// embedder construction order independent.
	var onRetry func(attempt int, err error)

	emb, err := embedder.NewFromEnv(func(attempt int, err error) {
		if onRetry != nil {
			onRetry(attempt, err)
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	idx, catalog, err := index.NewFromEnv(ctx, emb.Model(), emb.Dimensions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	cleanup := func() { _ = idx.Close() }

	ret, err := retriever.New(emb, idx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialise retriever: %w", err)
	}

	chk, err := chunker.New(chunker.Config{
		Size:           getEnvInt("CHUNK_SIZE", 0),
		Overlap:        getEnvInt("CHUNK_OVERLAP", 0),
		SnapToSentence: os.Getenv("CHUNK_SNAP_TO_SENTENCE") == "true",
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	gen, err := provider.NewGenerator(chatModel)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialise generator: %w", err)
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Extractor: extract.New(),
		Chunker:   chk,
		Embedder:  emb,
		Index:     idx,
		Catalog:   catalog,
		Retriever: ret,
		Assembler: prompt.New(prompt.NewCounter(getEnvOrDefault("TOKENIZER_ENCODING", ""))),
		Generator: gen,
	}, pipeline.Config{
		Workers:         getEnvInt("INGEST_WORKERS", 0),
		GenerateTimeout: time.Duration(getEnvInt("MODEL_TIMEOUT_SECONDS", 0)) * time.Second,
		Chat: pipeline.QueryParams{
			TopK:          getEnvInt("CHAT_TOP_K", 0),
			MinSimilarity: getEnvFloat32("CHAT_MIN_SIMILARITY", 0),
			ContextBudget: getEnvInt("CHAT_CONTEXT_BUDGET", 0),
			HistoryBudget: getEnvInt("CHAT_HISTORY_BUDGET", 0),
		},
		Summary: pipeline.QueryParams{
			TopK:          getEnvInt("SUMMARY_TOP_K", 0),
			MinSimilarity: getEnvFloat32("SUMMARY_MIN_SIMILARITY", 0),
			ContextBudget: getEnvInt("SUMMARY_CONTEXT_BUDGET", 0),
		},
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to assemble pipeline: %w", err)
	}

	onRetry = pipe.ObserveEmbeddingRetry

	return pipe, cleanup, nil
}

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset
// or unparsable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat32 returns the env var parsed as float32, or fallback when
// unset or unparsable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
