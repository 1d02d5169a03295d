package prompt

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// heuristicCounter forces the characters-per-token fallback so budget
// tests are deterministic without a tiktoken encoding on disk.
func heuristicCounter() *Counter {
	return &Counter{}
}

// chunkResult builds a retrieval result from chunk texts, best-first.
func chunkResult(texts ...string) rag.RetrievalResult {
	result := make(rag.RetrievalResult, 0, len(texts))
	for i, text := range texts {
		result = append(result, rag.Scored{
			Entry: rag.IndexEntry{
				ChunkID:    rag.ChunkID("doc1", i),
				DocumentID: "doc1",
				SourcePath: "/docs/a.txt",
				Seq:        i,
				Text:       text,
			},
			Score: 1.0 - float32(i)*0.1,
		})
	}
	return result
}

func Test_Assemble_GroundedPrompt(t *testing.T) {
	t.Parallel()
	a := New(heuristicCounter())

	p := a.Assemble("what is Go?", chunkResult("Go is a language.", "Go has goroutines."),
		nil, Budgets{Context: 1000, History: 1000})

	if !p.Grounded {
		t.Fatal("prompt with retrieved chunks must be grounded")
	}
	if !strings.Contains(p.Context, "Go is a language.") || !strings.Contains(p.Context, "Go has goroutines.") {
		t.Errorf("context missing chunk text: %q", p.Context)
	}
	if !strings.Contains(p.Context, "[source: /docs/a.txt chunk 0]") {
		t.Errorf("context missing source tag: %q", p.Context)
	}
	if p.Query != "what is Go?" {
		t.Errorf("query: want %q, got %q", "what is Go?", p.Query)
	}
	if !strings.Contains(p.System, "three sentences maximum") {
		t.Errorf("unexpected system prompt: %q", p.System)
	}
}

func Test_Assemble_EmptyRetrievalIsMarkedUngrounded(t *testing.T) {
	t.Parallel()
	a := New(heuristicCounter())

	p := a.Assemble("anything", nil, nil, Budgets{Context: 1000, History: 1000})

	if p.Grounded {
		t.Fatal("empty retrieval must not be grounded")
	}
	if p.Context != noContextMarker {
		t.Errorf("want the no-context marker, got %q", p.Context)
	}
}

func Test_Assemble_ContextBudgetStopsPacking(t *testing.T) {
	t.Parallel()
	a := New(heuristicCounter())

	big := strings.Repeat("x", 400) // ~100 tokens under the heuristic
	p := a.Assemble("q", chunkResult(big, big, big), nil, Budgets{Context: 250, History: 0})

	if !p.Grounded {
		t.Fatal("want grounded prompt")
	}
	if got := strings.Count(p.Context, "[source:"); got != 2 {
		t.Errorf("want 2 chunks within budget, got %d", got)
	}
}

func Test_Assemble_TopChunkAlwaysIncluded(t *testing.T) {
	t.Parallel()
	a := New(heuristicCounter())

	big := strings.Repeat("x", 400)
	p := a.Assemble("q", chunkResult(big, big), nil, Budgets{Context: 10, History: 0})

	if !p.Grounded {
		t.Fatal("successful retrieval must stay grounded even under a tiny budget")
	}
	if got := strings.Count(p.Context, "[source:"); got != 1 {
		t.Errorf("want exactly the top chunk, got %d", got)
	}
}

func Test_Assemble_HistoryTrimsOldestFirst(t *testing.T) {
	t.Parallel()
	a := New(heuristicCounter())

	history := []rag.Turn{
		{Role: "user", Text: strings.Repeat("a", 100)},
		{Role: "assistant", Text: strings.Repeat("b", 100)},
		{Role: "user", Text: strings.Repeat("c", 100)},
	}
	// Each turn is ~27 tokens; a budget of 60 fits the last two only.
	p := a.Assemble("q", nil, history, Budgets{Context: 100, History: 60})

	if len(p.History) != 2 {
		t.Fatalf("want 2 surviving turns, got %d", len(p.History))
	}
	if p.History[0].Role != "assistant" || p.History[1].Role != "user" {
		t.Errorf("survivors must be the newest turns oldest-first, got %s then %s",
			p.History[0].Role, p.History[1].Role)
	}
}

func Test_Assemble_ZeroHistoryBudgetDropsAllTurns(t *testing.T) {
	t.Parallel()
	a := New(heuristicCounter())

	history := []rag.Turn{{Role: "user", Text: "hello"}}
	p := a.Assemble("q", nil, history, Budgets{Context: 100, History: 0})

	if len(p.History) != 0 {
		t.Errorf("want no history, got %d turns", len(p.History))
	}
}

func Test_AssembleSummary_UsesSummaryPersona(t *testing.T) {
	t.Parallel()
	a := New(heuristicCounter())

	p := a.AssembleSummary("goroutines", chunkResult("Goroutines are cheap."), 1000)

	if !strings.Contains(p.System, "summarization") {
		t.Errorf("unexpected system prompt: %q", p.System)
	}
	if len(p.History) != 0 {
		t.Error("summary prompts must carry no history")
	}
	if p.Query != "goroutines" {
		t.Errorf("query: want topic, got %q", p.Query)
	}
}

func Test_Messages_Ordering(t *testing.T) {
	t.Parallel()

	p := &rag.Prompt{
		System:  qaSystem,
		Context: "some context",
		History: []rag.Turn{
			{Role: "user", Text: "hi"},
			{Role: "assistant", Text: "hello"},
		},
		Query:    "what now?",
		Grounded: true,
	}

	msgs := Messages(p)
	if len(msgs) != 4 {
		t.Fatalf("want 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != schema.System || !strings.Contains(msgs[0].Content, "some context") {
		t.Errorf("msg[0] must be the system message with context, got %s", msgs[0].Role)
	}
	if msgs[1].Role != schema.User || msgs[1].Content != "hi" {
		t.Errorf("msg[1]: want user/hi, got %s/%q", msgs[1].Role, msgs[1].Content)
	}
	if msgs[2].Role != schema.Assistant || msgs[2].Content != "hello" {
		t.Errorf("msg[2]: want assistant/hello, got %s/%q", msgs[2].Role, msgs[2].Content)
	}
	if msgs[3].Role != schema.User || msgs[3].Content != "what now?" {
		t.Errorf("msg[3]: want the query last, got %s/%q", msgs[3].Role, msgs[3].Content)
	}
}

func Test_Counter_HeuristicFallback(t *testing.T) {
	t.Parallel()
	c := heuristicCounter()

	if got := c.Count(""); got != 0 {
		t.Errorf("empty text: want 0 tokens, got %d", got)
	}
	if got := c.Count(strings.Repeat("x", 8)); got != 2 {
		t.Errorf("8 chars: want 2 tokens, got %d", got)
	}
	if got := c.Count("abcde"); got != 2 {
		t.Errorf("5 chars: want 2 tokens (rounded up), got %d", got)
	}
}
