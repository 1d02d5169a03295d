package prompt

import (
	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is used when no model-specific encoding can be resolved.
const defaultEncoding = "cl100k_base"

// heuristicCharsPerToken approximates token counts when no tiktoken
// encoding is available (offline builds, unknown models).
const heuristicCharsPerToken = 4

// Counter counts prompt tokens. It prefers a real tiktoken encoding and
// falls back to a characters-per-token heuristic, so budget enforcement
// degrades to approximate rather than failing.
type Counter struct {
	tke *tiktoken.Tiktoken
}

// NewCounter builds a Counter for the given model or encoding name. The
// name is tried as an encoding first, then as a model; failing both, the
// default encoding is tried, and failing that the Counter runs on the
// heuristic alone.
func NewCounter(modelOrEncoding string) *Counter {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}
	tke, err := tiktoken.GetEncoding(modelOrEncoding)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(modelOrEncoding)
	}
	if err != nil {
		tke, _ = tiktoken.GetEncoding(defaultEncoding)
	}
	return &Counter{tke: tke}
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if c.tke == nil {
		return (len(text) + heuristicCharsPerToken - 1) / heuristicCharsPerToken
	}
	return len(c.tke.Encode(text, nil, nil))
}
