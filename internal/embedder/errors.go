// Package embedder provides implementations of the rag.Embedder interface
// for converting text into dense vector embeddings, plus the Batcher adapter
// that adds batching, rate limiting, and retry-with-backoff on top of any
// backend. Each backend talks plain HTTP (Ollama, OpenAI, Azure OpenAI) —
// no additional SDK dependencies are required.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// classifyHTTP wraps an HTTP-level failure as an EmbeddingError with the
// retry classification the batcher acts on. Rate limits, request timeouts,
// and server errors are transient; auth and malformed-input failures are
// permanent.
func classifyHTTP(status int, msg string) error {
	err := fmt.Errorf("HTTP %d: %s", status, msg)
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return &rag.EmbeddingError{Transient: true, Err: err}
	default:
		return &rag.EmbeddingError{Transient: false, Err: err}
	}
}

// classifyTransport wraps a transport-level failure. Context cancellation
// propagates untouched so callers can distinguish a cancelled query from a
// backend outage; everything else (connection refused, DNS, socket
// timeout) is transient.
func classifyTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	return &rag.EmbeddingError{Transient: true, Err: err}
}
