package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// Batcher defaults, applied when the corresponding BatchConfig field is zero.
const (
	// DefaultMaxBatchSize caps the number of texts sent per backend call.
	DefaultMaxBatchSize = 64

	// DefaultMaxAttempts bounds the retry count for transient failures
	// (1 initial call + 2 retries).
	DefaultMaxAttempts = 3

	// DefaultBackoffBase is the first retry delay; each subsequent retry
	// doubles it, with jitter.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultCallTimeout is the per-backend-call deadline. A timed-out call
	// counts as a transient failure.
	DefaultCallTimeout = 60 * time.Second
)

// BatchConfig tunes the Batcher wrapper.
type BatchConfig struct {
	// MaxBatchSize is the maximum number of texts per backend call.
	MaxBatchSize int

	// MaxAttempts bounds how many times a transient failure is attempted.
	MaxAttempts int

	// BackoffBase is the initial exponential backoff delay.
	BackoffBase time.Duration

	// CallTimeout is the deadline applied to each backend call.
	CallTimeout time.Duration

	// RequestsPerSecond throttles backend calls. Zero disables throttling.
	RequestsPerSecond float64

	// OnRetry, if set, is invoked before each retry sleep with the attempt
	// number and the transient error. Used for logging and metrics.
	OnRetry func(attempt int, err error)
}

// Batcher wraps a rag.Embedder with batching, rate limiting, and bounded
// retry with exponential backoff. It never returns a short result: a
// failure in any sub-batch fails the whole call, so callers can re-split
// and retry without risk of silently dropped inputs.
// Safe for concurrent use when the wrapped embedder is.
type Batcher struct {
	inner   rag.Embedder
	cfg     BatchConfig
	limiter *rate.Limiter
}

// NewBatcher wraps inner with the given config, filling in defaults for
// zero-valued fields.
func NewBatcher(inner rag.Embedder, cfg BatchConfig) (*Batcher, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder: inner embedder must not be nil: %w", rag.ErrConfig)
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Batcher{inner: inner, cfg: cfg, limiter: limiter}, nil
}

// Model returns the wrapped embedder's model identifier.
func (b *Batcher) Model() string { return b.inner.Model() }

// Dimensions returns the wrapped embedder's vector size.
func (b *Batcher) Dimensions() int { return b.inner.Dimensions() }

// Embed converts texts into embeddings, preserving input order. Inputs are
// split into sub-batches of at most MaxBatchSize; each sub-batch is retried
// on transient failure with exponential backoff up to MaxAttempts, and the
// whole call fails on the first sub-batch that exhausts its attempts or
// hits a permanent error.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.cfg.MaxBatchSize {
		end := start + b.cfg.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := b.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	return out, nil
}

// embedBatch performs one rate-limited, retried backend call.
func (b *Batcher) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	backoff := retry.WithMaxRetries(
		uint64(b.cfg.MaxAttempts-1), //nolint:gosec // bounded by config validation
		retry.WithJitter(b.cfg.BackoffBase/4, retry.NewExponential(b.cfg.BackoffBase)),
	)

	attempt := 0
	var vectors [][]float32
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
		defer cancel()

		result, callErr := b.inner.Embed(callCtx, batch)
		if callErr != nil {
			if rag.IsTransient(callErr) {
				// The final attempt's failure is not retried, so it is
				// not reported as a retry.
				if b.cfg.OnRetry != nil && attempt < b.cfg.MaxAttempts {
					b.cfg.OnRetry(attempt, callErr)
				}
				return retry.RetryableError(callErr)
			}
			return callErr
		}

		if err := b.validate(batch, result); err != nil {
			return err
		}
		vectors = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// validate enforces the order-and-length contract and the index-wide
// dimension before any result leaves the adapter.
func (b *Batcher) validate(batch []string, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return &rag.EmbeddingError{Err: fmt.Errorf("embedder: got %d vectors for %d texts", len(vectors), len(batch))}
	}
	want := b.inner.Dimensions()
	for i, v := range vectors {
		if len(v) != want {
			return &rag.EmbeddingError{Err: fmt.Errorf("embedder: vector %d has dimension %d, model %s produces %d", i, len(v), b.inner.Model(), want)}
		}
	}
	return nil
}
