package pipeline

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/olifarhaan/rag-console-chat/internal/logging"
	"github.com/olifarhaan/rag-console-chat/internal/prompt"
	"github.com/olifarhaan/rag-console-chat/internal/rag"
	"github.com/olifarhaan/rag-console-chat/internal/session"
)

// Answer is the result of one query or summarize flow.
type Answer struct {
	// Text is the generated response.
	Text string

	// Grounded reports whether the prompt contained retrieved context.
	Grounded bool

	// Sources lists the distinct source paths behind the context block,
	// best match first.
	Sources []string
}

// Query runs the chat flow: retrieve context for the query, assemble the
// prompt with the session history, and generate the answer. On success the
// exchange is appended to the session; on failure the session is left
// untouched so the conversation stays usable.
func (p *Pipeline) Query(ctx context.Context, sess *session.Session, query string) (*Answer, error) {
	log := logging.FromContext(ctx)

	result, err := p.deps.Retriever.Retrieve(ctx, query, rag.RetrievalParams{
		TopK:          p.cfg.Chat.TopK,
		MinSimilarity: p.cfg.Chat.MinSimilarity,
	})
	if err != nil {
		p.metrics.queriesTotal.WithLabelValues("retrieval_error").Inc()
		return nil, fmt.Errorf("pipeline: query retrieval: %w", err)
	}
	p.metrics.retrievalResults.Observe(float64(len(result)))

	built := p.deps.Assembler.Assemble(query, result, sess.History(0), prompt.Budgets{
		Context: p.cfg.Chat.ContextBudget,
		History: p.cfg.Chat.HistoryBudget,
	})
	if !built.Grounded {
		log.Debug("no grounding context", "session", sess.ID)
	}

	text, err := p.generate(ctx, built)
	if err != nil {
		p.metrics.queriesTotal.WithLabelValues("generation_error").Inc()
		return nil, err
	}

	sess.Append(session.RoleUser, query)
	sess.Append(session.RoleAssistant, text)
	p.metrics.queriesTotal.WithLabelValues("ok").Inc()

	return &Answer{Text: text, Grounded: built.Grounded, Sources: sources(result)}, nil
}

// Summarize runs the stateless summarize flow for a topic.
func (p *Pipeline) Summarize(ctx context.Context, topic string) (*Answer, error) {
	result, err := p.deps.Retriever.Retrieve(ctx, topic, rag.RetrievalParams{
		TopK:          p.cfg.Summary.TopK,
		MinSimilarity: p.cfg.Summary.MinSimilarity,
	})
	if err != nil {
		p.metrics.queriesTotal.WithLabelValues("retrieval_error").Inc()
		return nil, fmt.Errorf("pipeline: summary retrieval: %w", err)
	}
	p.metrics.retrievalResults.Observe(float64(len(result)))

	built := p.deps.Assembler.AssembleSummary(topic, result, p.cfg.Summary.ContextBudget)
	text, err := p.generate(ctx, built)
	if err != nil {
		p.metrics.queriesTotal.WithLabelValues("generation_error").Inc()
		return nil, err
	}

	p.metrics.queriesTotal.WithLabelValues("ok").Inc()
	return &Answer{Text: text, Grounded: built.Grounded, Sources: sources(result)}, nil
}

// generate calls the generator under the pipeline's retry budget: transient
// failures are retried with exponential backoff, permanent ones fail fast.
// Each attempt runs under its own deadline so a wedged backend surfaces as
// a transient timeout instead of hanging the query.
func (p *Pipeline) generate(ctx context.Context, built *rag.Prompt) (string, error) {
	log := logging.FromContext(ctx)

	backoff := retry.WithMaxRetries(
		uint64(p.cfg.GenerateMaxAttempts-1), //nolint:gosec // bounded by config validation
		retry.WithJitter(p.cfg.GenerateBackoff/4, retry.NewExponential(p.cfg.GenerateBackoff)),
	)

	var text string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
		defer cancel()

		var callErr error
		text, callErr = p.deps.Generator.Generate(callCtx, built)
		if callErr == nil {
			return nil
		}
		if rag.IsTransient(callErr) {
			log.Warn("generation retrying", "error", callErr)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("pipeline: generation: %w", err)
	}
	return text, nil
}

// sources extracts the distinct source paths from a retrieval result,
// preserving rank order.
func sources(result rag.RetrievalResult) []string {
	seen := make(map[string]bool, len(result))
	var out []string
	for _, s := range result {
		if !seen[s.Entry.SourcePath] {
			seen[s.Entry.SourcePath] = true
			out = append(out, s.Entry.SourcePath)
		}
	}
	return out
}
