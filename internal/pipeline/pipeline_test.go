package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olifarhaan/rag-console-chat/internal/chunker"
	"github.com/olifarhaan/rag-console-chat/internal/extract"
	"github.com/olifarhaan/rag-console-chat/internal/index"
	"github.com/olifarhaan/rag-console-chat/internal/prompt"
	"github.com/olifarhaan/rag-console-chat/internal/rag"
	"github.com/olifarhaan/rag-console-chat/internal/retriever"
	"github.com/olifarhaan/rag-console-chat/internal/session"
)

// hashEmbedder produces deterministic 3-dimensional vectors from text so
// pipeline tests exercise real indexing and retrieval without a backend.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		sum := h.Sum32()
		out[i] = []float32{
			float32(sum%97) / 97,
			float32(sum%89) / 89,
			float32(sum%83) / 83,
		}
	}
	return out, nil
}

func (hashEmbedder) Model() string   { return "hash-embed" }
func (hashEmbedder) Dimensions() int { return 3 }

// scriptedGenerator pops one error per call; nil means success.
type scriptedGenerator struct {
	script  []error
	calls   int
	answer  string
	prompts []*rag.Prompt
}

func (g *scriptedGenerator) Generate(_ context.Context, p *rag.Prompt) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, p)
	if len(g.script) > 0 {
		err := g.script[0]
		g.script = g.script[1:]
		if err != nil {
			return "", err
		}
	}
	return g.answer, nil
}

// newTestPipeline wires a pipeline over an in-memory index, real chunking
// and extraction, and the given generator.
func newTestPipeline(t *testing.T, gen rag.Generator) *Pipeline {
	t.Helper()

	emb := hashEmbedder{}
	idx, err := index.Open(":memory:", emb.Model(), emb.Dimensions())
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	ch, err := chunker.New(chunker.Config{Size: 100, Overlap: 20})
	if err != nil {
		t.Fatalf("new chunker: %v", err)
	}
	ret, err := retriever.New(emb, idx)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	p, err := New(Deps{
		Extractor: extract.New(),
		Chunker:   ch,
		Embedder:  emb,
		Index:     idx,
		Catalog:   idx,
		Retriever: ret,
		Assembler: prompt.New(prompt.NewCounter("")),
		Generator: gen,
	}, Config{Workers: 2, GenerateBackoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

// writeDocs populates a temp docs directory and returns it.
func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func Test_Pipeline_IngestIndexesDocuments(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &scriptedGenerator{answer: "ok"})
	dir := writeDocs(t, map[string]string{
		"go.txt":    "Go is a statically typed language. It compiles quickly and has garbage collection.",
		"notes.md":  "Goroutines are lightweight threads managed by the Go runtime scheduler.",
		"empty.txt": "",
	})

	report, err := p.Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Succeeded != 3 || report.Skipped != 0 || len(report.Failed) != 0 {
		t.Fatalf("want 3 succeeded, got %+v", report)
	}

	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("want 2 index entries (one per non-empty doc), got %d", stats.Entries)
	}
	if stats.Model != "hash-embed" || stats.Dimension != 3 {
		t.Errorf("unexpected index binding: %+v", stats)
	}
}

func Test_Pipeline_ReingestSkipsUnchanged(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &scriptedGenerator{answer: "ok"})
	dir := writeDocs(t, map[string]string{
		"a.txt": "Alpha document body.",
		"b.txt": "Beta document body.",
	})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, dir); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	report, err := p.Ingest(ctx, dir)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if report.Succeeded != 0 || report.Skipped != 2 {
		t.Errorf("re-ingest of unchanged corpus: want all skipped, got %+v", report)
	}
}

func Test_Pipeline_ReingestReplacesChangedDocument(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &scriptedGenerator{answer: "ok"})
	dir := writeDocs(t, map[string]string{"a.txt": "Original content."})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, dir); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Rewritten content."), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	report, err := p.Ingest(ctx, dir)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if report.Succeeded != 1 || report.Skipped != 0 {
		t.Fatalf("changed document must be re-indexed, got %+v", report)
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 || stats.Documents != 1 {
		t.Errorf("stale entries must be replaced, not accumulated: %+v", stats)
	}
}

func Test_Pipeline_IngestIsolatesFailures(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &scriptedGenerator{answer: "ok"})
	dir := writeDocs(t, map[string]string{
		"good.txt": "A perfectly fine document.",
		"bad.txt":  "broken \xff\xfe bytes",
	})

	report, err := p.Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Succeeded != 1 {
		t.Errorf("the good document must still be indexed, got %+v", report)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("want 1 failure, got %+v", report.Failed)
	}
	if !errors.Is(report.Failed[0].Err, rag.ErrCorruptFile) {
		t.Errorf("want ErrCorruptFile, got %v", report.Failed[0].Err)
	}
	if filepath.Base(report.Failed[0].SourcePath) != "bad.txt" {
		t.Errorf("failure must name the bad file, got %s", report.Failed[0].SourcePath)
	}
}

func Test_Pipeline_IngestMissingDirectory(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &scriptedGenerator{answer: "ok"})

	_, err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("want error for missing docs directory")
	}
}

func Test_Pipeline_QueryAnswersAndRecordsSession(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{answer: "Go compiles fast."}
	p := newTestPipeline(t, gen)
	dir := writeDocs(t, map[string]string{
		"go.txt": "Go is a statically typed language with fast compilation.",
	})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, dir); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	sess := session.New()
	answer, err := p.Query(ctx, sess, "how fast does Go compile?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if answer.Text != "Go compiles fast." {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if !answer.Grounded {
		t.Error("query over an indexed corpus must be grounded")
	}
	if len(answer.Sources) != 1 || filepath.Base(answer.Sources[0]) != "go.txt" {
		t.Errorf("unexpected sources: %v", answer.Sources)
	}

	turns := sess.History(0)
	if len(turns) != 2 {
		t.Fatalf("want the exchange recorded, got %d turns", len(turns))
	}
	if turns[0].Role != session.RoleUser || turns[1].Role != session.RoleAssistant {
		t.Errorf("unexpected turn roles: %s, %s", turns[0].Role, turns[1].Role)
	}
}

func Test_Pipeline_QueryEmptyCorpusIsUngrounded(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{answer: "I don't know."}
	p := newTestPipeline(t, gen)

	answer, err := p.Query(context.Background(), session.New(), "anything?")
	if err != nil {
		t.Fatalf("query on empty corpus: %v", err)
	}
	if answer.Grounded {
		t.Error("empty corpus must yield an ungrounded answer")
	}
	if len(gen.prompts) != 1 || gen.prompts[0].Grounded {
		t.Error("generator must receive the ungrounded prompt")
	}
}

func Test_Pipeline_QueryRetriesTransientGeneration(t *testing.T) {
	t.Parallel()
	transient := &rag.GenerationError{Transient: true, Err: errors.New("overloaded")}
	gen := &scriptedGenerator{answer: "eventually", script: []error{transient, transient, nil}}
	p := newTestPipeline(t, gen)

	sess := session.New()
	answer, err := p.Query(context.Background(), sess, "q")
	if err != nil {
		t.Fatalf("query must survive transient generation failures: %v", err)
	}
	if answer.Text != "eventually" {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if gen.calls != 3 {
		t.Errorf("want 3 generation attempts, got %d", gen.calls)
	}
	if sess.Len() != 2 {
		t.Errorf("successful query must record the exchange, got %d turns", sess.Len())
	}
}

func Test_Pipeline_QueryPermanentGenerationFailure(t *testing.T) {
	t.Parallel()
	permanent := &rag.GenerationError{Err: errors.New("content rejected")}
	gen := &scriptedGenerator{script: []error{permanent}}
	p := newTestPipeline(t, gen)

	sess := session.New()
	_, err := p.Query(context.Background(), sess, "q")
	if !errors.Is(err, rag.ErrGeneration) {
		t.Fatalf("want ErrGeneration, got %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("permanent failure must not be retried, got %d calls", gen.calls)
	}
	if sess.Len() != 0 {
		t.Errorf("failed query must leave the session untouched, got %d turns", sess.Len())
	}
}

// hangingGenerator blocks until its context expires on the first call and
// succeeds on the next one.
type hangingGenerator struct {
	calls int
}

func (g *hangingGenerator) Generate(ctx context.Context, _ *rag.Prompt) (string, error) {
	g.calls++
	if g.calls == 1 {
		<-ctx.Done()
		return "", &rag.GenerationError{Transient: true, Err: ctx.Err()}
	}
	return "recovered", nil
}

func Test_Pipeline_GenerationAttemptsCarryDeadline(t *testing.T) {
	t.Parallel()
	gen := &deadlineGenerator{answer: "ok"}
	p := newTestPipeline(t, gen)

	sess := session.New()
	if _, err := p.Query(context.Background(), sess, "q"); err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(gen.deadlines) != 1 || !gen.deadlines[0] {
		t.Fatalf("every generation attempt must run under a deadline, got %v", gen.deadlines)
	}
}

// deadlineGenerator records whether each call's context carried a deadline.
type deadlineGenerator struct {
	answer    string
	deadlines []bool
}

func (g *deadlineGenerator) Generate(ctx context.Context, _ *rag.Prompt) (string, error) {
	_, ok := ctx.Deadline()
	g.deadlines = append(g.deadlines, ok)
	return g.answer, nil
}

func Test_Pipeline_WedgedGenerationTimesOutAndRetries(t *testing.T) {
	t.Parallel()
	gen := &hangingGenerator{}
	p := newTestPipeline(t, gen)
	p.cfg.GenerateTimeout = 20 * time.Millisecond

	sess := session.New()
	answer, err := p.Query(context.Background(), sess, "q")
	if err != nil {
		t.Fatalf("query must recover after a wedged attempt: %v", err)
	}
	if answer.Text != "recovered" {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if gen.calls != 2 {
		t.Errorf("want the wedged attempt cut off and retried once, got %d calls", gen.calls)
	}
}

func Test_Pipeline_SummarizeUsesSummaryParameters(t *testing.T) {
	t.Parallel()
	gen := &scriptedGenerator{answer: "A summary."}
	p := newTestPipeline(t, gen)
	dir := writeDocs(t, map[string]string{"a.txt": "Topic material goes here."})
	ctx := context.Background()

	if _, err := p.Ingest(ctx, dir); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	answer, err := p.Summarize(ctx, "the topic")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if answer.Text != "A summary." {
		t.Errorf("unexpected answer: %q", answer.Text)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("want 1 generation, got %d", len(gen.prompts))
	}
	if len(gen.prompts[0].History) != 0 {
		t.Error("summaries must not carry conversation history")
	}
}

func Test_Pipeline_NewValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Config{})
	if !errors.Is(err, rag.ErrConfig) {
		t.Fatalf("want ErrConfig for missing dependencies, got %v", err)
	}
}

func Test_Pipeline_IngestCancellation(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &scriptedGenerator{answer: "ok"})

	docs := make(map[string]string, 40)
	for i := range 40 {
		docs[fmt.Sprintf("doc%02d.txt", i)] = fmt.Sprintf("Document number %d body.", i)
	}
	dir := writeDocs(t, docs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ingest(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled surfaced, got %v", err)
	}
}
