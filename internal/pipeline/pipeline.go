// Package pipeline orchestrates the two flows of the application: corpus
// ingestion (extract, chunk, embed, index) and query answering (retrieve,
// assemble, generate). It owns the generation retry budget and all
// pipeline-level Prometheus metrics.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/olifarhaan/rag-console-chat/internal/index"
	"github.com/olifarhaan/rag-console-chat/internal/prompt"
	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// Extractor is the extraction surface the pipeline needs: text extraction
// plus format discovery for directory scans.
type Extractor interface {
	rag.Extractor

	// Supported reports whether the file at path has a registered format.
	Supported(path string) bool

	// Format returns the format label for the file at path.
	Format(path string) string
}

// Chunker splits document text into ordered chunks.
type Chunker interface {
	Split(documentID, text string) []rag.Chunk
}

// QueryParams tunes one query mode.
type QueryParams struct {
	// TopK is the maximum number of chunks retrieved.
	TopK int

	// MinSimilarity filters out chunks scoring below this threshold.
	MinSimilarity float32

	// ContextBudget is the token budget for the prompt context block.
	ContextBudget int

	// HistoryBudget is the token budget for conversation history
	// (chat mode only).
	HistoryBudget int
}

// Config tunes the pipeline. Zero values select the defaults.
type Config struct {
	// Workers bounds ingestion concurrency (default: 4).
	Workers int

	// Chat are the retrieval and budget parameters for chat mode.
	Chat QueryParams

	// Summary are the retrieval and budget parameters for summarize mode.
	Summary QueryParams

	// GenerateMaxAttempts bounds generation retries on transient failures
	// (default: 3).
	GenerateMaxAttempts int

	// GenerateBackoff is the initial generation retry delay (default: 1s).
	GenerateBackoff time.Duration

	// GenerateTimeout is the deadline applied to each generation attempt,
	// mirroring the embedder's per-call timeout. A timed-out attempt counts
	// as a transient failure (default: 60s).
	GenerateTimeout time.Duration
}

// Deps are the pipeline's collaborators. All are required except Registry.
type Deps struct {
	Extractor Extractor
	Chunker   Chunker
	Embedder  rag.Embedder
	Index     rag.VectorIndex
	Catalog   index.Catalog
	Retriever rag.Retriever
	Assembler *prompt.Assembler
	Generator rag.Generator

	// Registry receives the pipeline metrics. Nil uses a private registry,
	// which keeps tests hermetic.
	Registry prometheus.Registerer
}

// Pipeline wires the ingestion and query flows together.
type Pipeline struct {
	deps    Deps
	cfg     Config
	metrics *pipelineMetrics
}

// New validates the dependencies, applies config defaults, and registers
// the pipeline metrics.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	switch {
	case deps.Extractor == nil:
		return nil, fmt.Errorf("pipeline: extractor is required: %w", rag.ErrConfig)
	case deps.Chunker == nil:
		return nil, fmt.Errorf("pipeline: chunker is required: %w", rag.ErrConfig)
	case deps.Embedder == nil:
		return nil, fmt.Errorf("pipeline: embedder is required: %w", rag.ErrConfig)
	case deps.Index == nil:
		return nil, fmt.Errorf("pipeline: index is required: %w", rag.ErrConfig)
	case deps.Catalog == nil:
		return nil, fmt.Errorf("pipeline: catalog is required: %w", rag.ErrConfig)
	case deps.Retriever == nil:
		return nil, fmt.Errorf("pipeline: retriever is required: %w", rag.ErrConfig)
	case deps.Assembler == nil:
		return nil, fmt.Errorf("pipeline: assembler is required: %w", rag.ErrConfig)
	case deps.Generator == nil:
		return nil, fmt.Errorf("pipeline: generator is required: %w", rag.ErrConfig)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Chat.TopK <= 0 {
		cfg.Chat.TopK = 4
	}
	if cfg.Chat.ContextBudget <= 0 {
		cfg.Chat.ContextBudget = 2048
	}
	if cfg.Chat.HistoryBudget <= 0 {
		cfg.Chat.HistoryBudget = 1024
	}
	if cfg.Summary.TopK <= 0 {
		cfg.Summary.TopK = 8
	}
	if cfg.Summary.ContextBudget <= 0 {
		cfg.Summary.ContextBudget = 2 * cfg.Chat.ContextBudget
	}
	if cfg.GenerateMaxAttempts <= 0 {
		cfg.GenerateMaxAttempts = 3
	}
	if cfg.GenerateBackoff <= 0 {
		cfg.GenerateBackoff = time.Second
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Pipeline{
		deps:    deps,
		cfg:     cfg,
		metrics: newPipelineMetrics(reg),
	}, nil
}

// ObserveEmbeddingRetry counts a transient embedding failure that was
// retried. Wire it as the embedder's retry hook.
func (p *Pipeline) ObserveEmbeddingRetry(int, error) {
	p.metrics.embeddingRetriesTotal.Inc()
}

// Stats reports the current index contents.
func (p *Pipeline) Stats(ctx context.Context) (rag.IndexStats, error) {
	return p.deps.Index.Stats(ctx)
}
