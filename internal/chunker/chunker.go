// Package chunker splits normalized document text into bounded, overlapping
// chunks with byte offsets preserved. Splitting is deterministic: the same
// input and configuration always produce the same chunks, and the ordered
// chunk spans cover the full document with no gaps.
package chunker

import (
	"fmt"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// Default chunking parameters, matching the ingestion defaults the rest of
// the pipeline assumes.
const (
	// DefaultSize is the maximum number of bytes per chunk.
	DefaultSize = 1000

	// DefaultOverlap is the number of bytes shared between consecutive chunks.
	DefaultOverlap = 20
)

// sentenceTerminators are the bytes a chunk boundary may snap to when
// sentence snapping is enabled.
var sentenceTerminators = map[byte]bool{'.': true, '!': true, '?': true, '\n': true}

// Config holds the chunking policy.
type Config struct {
	// Size is the maximum chunk length in bytes. Defaults to DefaultSize
	// if zero.
	Size int

	// Overlap is the number of bytes consecutive chunks share. Must be
	// smaller than Size. Defaults to DefaultOverlap if zero.
	Overlap int

	// SnapToSentence moves each chunk boundary backward to the nearest
	// sentence terminator within SnapTolerance bytes, so chunks tend not
	// to cut mid-sentence. Coverage and determinism are preserved: the
	// next chunk starts relative to the snapped boundary.
	SnapToSentence bool

	// SnapTolerance is the maximum distance a boundary may move when
	// snapping. Must be smaller than Size-Overlap so every chunk makes
	// forward progress. Defaults to 80 if zero and snapping is enabled.
	SnapTolerance int
}

// Chunker splits document text according to a validated Config.
type Chunker struct {
	cfg Config
}

// New validates cfg and returns a Chunker. Invalid parameters fail with
// rag.ErrConfig before any document is touched.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.Size < 0 {
		return nil, fmt.Errorf("chunker: size %d must be positive: %w", cfg.Size, rag.ErrConfig)
	}
	if cfg.Overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap %d must not be negative: %w", cfg.Overlap, rag.ErrConfig)
	}
	if cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunker: overlap %d must be smaller than size %d: %w", cfg.Overlap, cfg.Size, rag.ErrConfig)
	}
	if cfg.SnapToSentence {
		if cfg.SnapTolerance == 0 {
			cfg.SnapTolerance = 80
		}
		if cfg.SnapTolerance < 0 || cfg.SnapTolerance >= cfg.Size-cfg.Overlap {
			return nil, fmt.Errorf("chunker: snap tolerance %d must be in [0, size-overlap): %w", cfg.SnapTolerance, rag.ErrConfig)
		}
	}
	return &Chunker{cfg: cfg}, nil
}

// Split decomposes the document text into ordered chunks owned by the given
// document ID. An empty document produces zero chunks; a document shorter
// than the chunk size produces exactly one.
func (c *Chunker) Split(documentID, text string) []rag.Chunk {
	if len(text) == 0 {
		return nil
	}

	var chunks []rag.Chunk
	start := 0
	for seq := 0; ; seq++ {
		end := start + c.cfg.Size
		if end >= len(text) {
			end = len(text)
		} else if c.cfg.SnapToSentence {
			end = c.snap(text, end)
		}

		chunks = append(chunks, rag.Chunk{
			ID:         rag.ChunkID(documentID, seq),
			DocumentID: documentID,
			Seq:        seq,
			Start:      start,
			End:        end,
			Text:       text[start:end],
		})

		if end == len(text) {
			break
		}
		start = end - c.cfg.Overlap
	}

	return chunks
}

// snap moves the boundary backward to just past the nearest sentence
// terminator within the tolerance window. If none is found the raw
// boundary stands.
func (c *Chunker) snap(text string, end int) int {
	limit := end - c.cfg.SnapTolerance
	for p := end - 1; p >= limit; p-- {
		if sentenceTerminators[text[p]] {
			return p + 1
		}
	}
	return end
}
