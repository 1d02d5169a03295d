package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/olifarhaan/rag-console-chat/internal/prompt"
	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// Generator adapts a chat model to the rag.Generator contract. It performs
// exactly one model call per Generate and classifies failures as transient
// or permanent; the pipeline owns the retry budget.
type Generator struct {
	model model.BaseChatModel
}

// NewGenerator wraps a chat model.
func NewGenerator(m model.BaseChatModel) (*Generator, error) {
	if m == nil {
		return nil, fmt.Errorf("provider: chat model is required: %w", rag.ErrConfig)
	}
	return &Generator{model: m}, nil
}

// Generate produces the model response for the assembled prompt.
func (g *Generator) Generate(ctx context.Context, p *rag.Prompt) (string, error) {
	resp, err := g.model.Generate(ctx, prompt.Messages(p))
	if err != nil {
		return "", classifyGeneration(ctx, err)
	}
	if resp == nil || resp.Content == "" {
		return "", &rag.GenerationError{Err: fmt.Errorf("provider: model returned an empty response")}
	}
	return resp.Content, nil
}

// transientMarkers are substrings of backend error messages that indicate
// a failure worth retrying: throttling, timeouts, and upstream outages.
var transientMarkers = []string{
	"429", "too many requests", "rate limit",
	"500", "502", "503", "504",
	"timeout", "timed out", "deadline exceeded",
	"connection refused", "connection reset", "temporarily unavailable",
	"overloaded",
}

// classifyGeneration maps a raw backend error onto the generation error
// taxonomy. Caller-initiated cancellation is passed through untouched so
// the pipeline does not retry an abort.
func classifyGeneration(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return err
	}

	transient := false
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		transient = true
	} else {
		msg := strings.ToLower(err.Error())
		for _, marker := range transientMarkers {
			if strings.Contains(msg, marker) {
				transient = true
				break
			}
		}
	}

	return &rag.GenerationError{
		Transient: transient,
		Err:       fmt.Errorf("provider: generate: %w", err),
	}
}
