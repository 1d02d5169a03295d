// Package prompt assembles generation-ready prompts from retrieved context
// and conversation history, enforcing token budgets so prompts stay inside
// the model's context window. Token counting uses tiktoken with a
// characters-per-token fallback.
package prompt

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// qaSystem is the question-answering persona instruction.
const qaSystem = "You are an assistant for question-answering tasks. " +
	"Use the retrieved context and the chat history to answer the question. " +
	"If you don't know the answer, say that you don't know. " +
	"Use three sentences maximum and keep the answer concise."

// summarySystem is the summarization persona instruction.
const summarySystem = "You are an assistant for summarization of topics. " +
	"Provide a concise summary of the following text in three sentences or less."

// noContextMarker is emitted as the context block when retrieval produced
// no qualifying chunks, so an ungrounded answer is distinguishable from a
// generation failure.
const noContextMarker = "No grounding context was found for this query."

// Budgets bounds the token usage of the variable prompt sections.
type Budgets struct {
	// Context is the token budget for the retrieved context block.
	Context int

	// History is the token budget for prior conversation turns.
	History int
}

// Assembler builds prompts from retrieval results. Safe for concurrent use.
type Assembler struct {
	counter *Counter
}

// New builds an Assembler using the given token counter.
func New(counter *Counter) *Assembler {
	return &Assembler{counter: counter}
}

// Assemble builds the chat-mode prompt: QA system instructions, retrieved
// context packed greedily best-first within the context budget, history
// trimmed oldest-first to the history budget, and the query.
func (a *Assembler) Assemble(query string, result rag.RetrievalResult, history []rag.Turn, budgets Budgets) *rag.Prompt {
	contextBlock, grounded := a.packContext(result, budgets.Context)
	return &rag.Prompt{
		System:   qaSystem,
		Context:  contextBlock,
		History:  a.trimHistory(history, budgets.History),
		Query:    query,
		Grounded: grounded,
	}
}

// AssembleSummary builds the summarize-mode prompt. Summaries carry no
// conversation history.
func (a *Assembler) AssembleSummary(topic string, result rag.RetrievalResult, contextBudget int) *rag.Prompt {
	contextBlock, grounded := a.packContext(result, contextBudget)
	return &rag.Prompt{
		System:   summarySystem,
		Context:  contextBlock,
		Query:    topic,
		Grounded: grounded,
	}
}

// packContext renders retrieved chunks best-first, tagged with their
// source, stopping before the budget would be exceeded. The top chunk is
// always included so a successful retrieval never yields an empty context.
func (a *Assembler) packContext(result rag.RetrievalResult, budget int) (string, bool) {
	if len(result) == 0 {
		return noContextMarker, false
	}

	var b strings.Builder
	used := 0
	included := 0
	for _, s := range result {
		block := fmt.Sprintf("[source: %s chunk %d]\n%s", s.Entry.SourcePath, s.Entry.Seq, s.Entry.Text)
		cost := a.counter.Count(block)
		if included > 0 && used+cost > budget {
			break
		}
		if included > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		used += cost
		included++
	}
	return b.String(), true
}

// trimHistory keeps the most recent turns that fit the budget, returned
// oldest-first for in-order injection.
func (a *Assembler) trimHistory(history []rag.Turn, budget int) []rag.Turn {
	if len(history) == 0 || budget <= 0 {
		return nil
	}

	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := a.counter.Count(history[i].Role + ": " + history[i].Text)
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	if start == len(history) {
		return nil
	}
	return history[start:]
}

// Messages converts an assembled prompt into the eino message sequence:
// system instructions with the context block, history turns in order, and
// the query as the final user message.
func Messages(p *rag.Prompt) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(p.History)+2)
	msgs = append(msgs, schema.SystemMessage(p.System+"\n\nContext:\n"+p.Context))
	for _, turn := range p.History {
		switch turn.Role {
		case "assistant":
			msgs = append(msgs, schema.AssistantMessage(turn.Text, nil))
		default:
			msgs = append(msgs, schema.UserMessage(turn.Text))
		}
	}
	msgs = append(msgs, schema.UserMessage(p.Query))
	return msgs
}
