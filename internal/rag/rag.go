// Package rag defines the core data model and interfaces for the
// retrieval-augmented-generation pipeline: documents, chunks, index entries,
// and the contracts for text extraction, embedding, vector indexing,
// retrieval, and generation. Concrete implementations (SQLite, Qdrant,
// Ollama, OpenAI, etc.) satisfy these interfaces so the pipeline never
// depends on a specific backend.
package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Document is an immutable source text registered with the corpus.
// Re-ingesting a document with an identical ContentHash is a no-op; a
// changed ContentHash replaces all of the document's index entries.
type Document struct {
	// ID is the stable document identifier derived from the source path.
	ID string

	// SourcePath is the filesystem path the document was read from.
	SourcePath string

	// Format is the source format label (txt, pdf, docx, md).
	Format string

	// Text is the extracted raw text of the document.
	Text string

	// ContentHash is the hex-encoded SHA-256 of Text.
	ContentHash string

	// IngestedAt is when the document entered the pipeline.
	IngestedAt time.Time
}

// Chunk is a bounded contiguous span of a document's text, the unit of
// embedding and retrieval. The ordered chunks of a document cover its full
// text with the configured overlap and no gaps.
type Chunk struct {
	// ID is the chunk identifier: "<document id>-<seq>".
	ID string

	// DocumentID is the owning document's ID.
	DocumentID string

	// Seq is the zero-based sequence index within the document.
	Seq int

	// Start is the byte offset of the chunk's first byte in the document text.
	Start int

	// End is the byte offset one past the chunk's last byte.
	End int

	// Text is the chunk content, equal to documentText[Start:End].
	Text string
}

// IndexEntry is the durable record the vector index owns for one chunk.
type IndexEntry struct {
	// ChunkID is the unique chunk identifier.
	ChunkID string

	// DocumentID is the owning document's ID.
	DocumentID string

	// SourcePath is the origin path, carried for source attribution in prompts.
	SourcePath string

	// Seq is the chunk's sequence index (retrieval tie-break key).
	Seq int

	// Start and End are the chunk's byte offsets into the document.
	Start int
	End   int

	// Text is the chunk content stored alongside the vector.
	Text string

	// Vector is the embedding of Text.
	Vector []float32

	// Model is the identifier of the embedding model that produced Vector.
	Model string
}

// Scored pairs an index entry with the similarity score assigned during
// retrieval (cosine, 1.0 = identical direction).
type Scored struct {
	Entry IndexEntry
	Score float32
}

// RetrievalResult is an ordered sequence of scored entries, descending by
// score with ties broken by lower chunk sequence index, then document ID.
type RetrievalResult []Scored

// Turn is a single conversation turn used by chat mode.
type Turn struct {
	// Role is "user" or "assistant".
	Role string

	// Text is the turn content.
	Text string

	// At is when the turn was recorded.
	At time.Time
}

// Extractor converts a source file into raw text. Implementations are
// selected by file extension or content sniffing; the pipeline never
// branches on format itself.
type Extractor interface {
	// Extract reads the file at path and returns its text content.
	// Unsupported formats fail with ErrUnsupportedFormat, unreadable or
	// malformed files with ErrCorruptFile.
	Extract(ctx context.Context, path string) (string, error)
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input: same length, same order.
	// A partial failure fails the whole batch — Embed never returns a
	// short result.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the identifier of the embedding model.
	Model() string

	// Dimensions returns the vector size this embedder produces.
	Dimensions() int
}

// IndexStats describes the current state of a vector index.
type IndexStats struct {
	// Entries is the total number of index entries.
	Entries int
	// Documents is the number of distinct documents indexed.
	Documents int
	// Model is the embedding model identifier bound to the index.
	Model string
	// Dimension is the index-wide vector dimension.
	Dimension int
}

// VectorIndex is the durable store of chunk embeddings, queryable by
// similarity. All embeddings in one index share the same dimension and
// model identifier; mixing models is a fatal consistency error.
// Implementations must be safe to call from multiple goroutines, with
// writes serialized against each other.
type VectorIndex interface {
	// Upsert inserts or replaces entries by chunk ID. An entry whose vector
	// dimension or model identifier disagrees with the index fails the call
	// with ErrIndexConsistency and leaves the index unchanged.
	Upsert(ctx context.Context, entries []IndexEntry) error

	// DeleteByDocument removes all entries belonging to the document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Query returns up to k entries ranked by cosine similarity to the
	// query vector, descending, with deterministic tie-breaking.
	Query(ctx context.Context, vector []float32, k int) (RetrievalResult, error)

	// Stats reports the current index contents.
	Stats(ctx context.Context) (IndexStats, error)

	// Close releases any resources held by the index.
	Close() error
}

// Retriever converts a user query into a ranked, filtered, deduplicated
// context set. Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve embeds the query and returns the qualifying entries.
	// An empty corpus or zero qualifying results yields an empty
	// RetrievalResult and a nil error.
	Retrieve(ctx context.Context, query string, params RetrievalParams) (RetrievalResult, error)
}

// RetrievalParams tunes a single retrieval call.
type RetrievalParams struct {
	// TopK is the maximum number of entries to return.
	TopK int

	// MinSimilarity filters out entries scoring below this threshold.
	MinSimilarity float32
}

// Generator produces text from an assembled prompt. The pipeline owns the
// retry budget for generation; implementations classify failures as
// transient or permanent via GenerationError but never retry internally.
type Generator interface {
	// Generate produces the model response for the prompt.
	Generate(ctx context.Context, prompt *Prompt) (string, error)
}

// Prompt is the structured, generation-ready output of the prompt assembler.
type Prompt struct {
	// System is the system instruction block.
	System string

	// Context is the grounding context block. When retrieval produced no
	// qualifying chunks it explicitly states that no grounding context was
	// found, so downstream policy can distinguish a retrieval gap from a
	// generation failure.
	Context string

	// History holds prior conversation turns, oldest first. Empty outside
	// chat mode.
	History []Turn

	// Query is the current user query or summarization topic.
	Query string

	// Grounded reports whether Context contains retrieved chunks.
	Grounded bool
}

// DocumentID derives the stable document identifier from its source path.
func DocumentID(sourcePath string) string {
	sum := sha256.Sum256([]byte(sourcePath))
	return fmt.Sprintf("%x", sum[:8])
}

// ContentHash returns the hex-encoded SHA-256 of the document text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum[:])
}

// ChunkID builds the chunk identifier from its document and sequence index.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s-%d", documentID, seq)
}
