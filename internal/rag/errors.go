package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy. Callers dispatch with
// [errors.Is]; concrete error values wrap these so messages keep their
// context while the class stays matchable.
var (
	// ErrConfig marks invalid chunk/overlap/budget parameters. Fatal —
	// raised before any I/O happens.
	ErrConfig = errors.New("invalid configuration")

	// ErrUnsupportedFormat marks a source file whose format no extractor
	// handles. Per-document; never aborts the batch.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptFile marks a source file that matched a format but could
	// not be parsed. Per-document; never aborts the batch.
	ErrCorruptFile = errors.New("corrupt document file")

	// ErrEmbedding marks an embedding backend failure. Wrap with
	// [EmbeddingError] to carry the transient/permanent classification.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexConsistency marks an upsert that would mix embedding
	// dimensions or model identifiers within one index. Fatal — the index
	// refuses the write.
	ErrIndexConsistency = errors.New("index consistency violation")

	// ErrCorruptIndex marks persisted index state that cannot be trusted:
	// unreadable on-disk format, or a model/dimension mismatch with the
	// active embedder. Fatal — refuse to serve until rebuilt.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrGeneration marks a generation backend failure. Surfaced to the
	// caller per query; the session remains alive.
	ErrGeneration = errors.New("generation failed")
)

// EmbeddingError wraps an embedding backend failure with its retry
// classification. Transient failures (rate limit, timeout) are retried
// with backoff by the batching adapter; permanent failures (auth,
// malformed input) propagate immediately.
type EmbeddingError struct {
	// Transient reports whether the failure is worth retrying.
	Transient bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("embedding failed (%s): %v", kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// Is reports a match against ErrEmbedding so callers can class-check
// without knowing the concrete type.
func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// GenerationError wraps a generation backend failure with its retry
// classification. The orchestrator, not the adapter, owns the retry budget.
type GenerationError struct {
	// Transient reports whether the failure is worth retrying.
	Transient bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("generation failed (%s): %v", kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *GenerationError) Unwrap() error { return e.Err }

// Is reports a match against ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// IsTransient reports whether err carries a transient embedding or
// generation classification.
func IsTransient(err error) bool {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Transient
	}
	return false
}
