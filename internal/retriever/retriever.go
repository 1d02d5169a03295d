// Package retriever turns a user query into a ranked context set: it embeds
// the query, searches the vector index, filters by similarity threshold,
// and collapses overlapping chunks of the same document so the prompt
// context is not padded with near-duplicate text.
package retriever

import (
	"context"
	"fmt"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// overqueryFactor controls how many candidates are fetched from the index
// per requested result. Filtering and overlap collapsing discard
// candidates, so the index is asked for more than TopK.
const overqueryFactor = 3

// Retriever implements rag.Retriever on top of an embedder and a vector
// index. It is safe for concurrent use when its dependencies are.
type Retriever struct {
	embedder rag.Embedder
	index    rag.VectorIndex
}

// New builds a Retriever. Both dependencies are required.
func New(embedder rag.Embedder, index rag.VectorIndex) (*Retriever, error) {
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("retriever: embedder and index are required: %w", rag.ErrConfig)
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// Retrieve embeds the query and returns up to params.TopK qualifying
// entries. An empty corpus or zero qualifying results yields an empty
// result and a nil error; only embedding or index failures are errors.
func (r *Retriever) Retrieve(ctx context.Context, query string, params rag.RetrievalParams) (rag.RetrievalResult, error) {
	if params.TopK <= 0 {
		return rag.RetrievalResult{}, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("retriever: embedder returned %d vectors for one query: %w", len(vectors), rag.ErrEmbedding)
	}

	candidates, err := r.index.Query(ctx, vectors[0], params.TopK*overqueryFactor)
	if err != nil {
		return nil, fmt.Errorf("retriever: index query: %w", err)
	}

	result := collapse(filter(candidates, params.MinSimilarity))
	if len(result) > params.TopK {
		result = result[:params.TopK]
	}
	return result, nil
}

// filter drops candidates scoring below the similarity threshold.
// Candidates arrive ranked and stay ranked.
func filter(candidates rag.RetrievalResult, minSimilarity float32) rag.RetrievalResult {
	kept := make(rag.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= minSimilarity {
			kept = append(kept, c)
		}
	}
	return kept
}

// collapse removes candidates whose span overlaps an already-kept span of
// the same document. Candidates are ranked best-first, so the survivor of
// each overlapping pair is always the higher-scored one.
func collapse(candidates rag.RetrievalResult) rag.RetrievalResult {
	kept := make(rag.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		overlapped := false
		for _, k := range kept {
			if k.Entry.DocumentID == c.Entry.DocumentID && overlaps(k.Entry, c.Entry) {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, c)
		}
	}
	return kept
}

// overlaps reports whether two half-open byte spans intersect.
func overlaps(a, b rag.IndexEntry) bool {
	return a.Start < b.End && b.Start < a.End
}
