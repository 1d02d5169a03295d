package index

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

const testModel = "test-embed"

// openTestIndex opens an in-memory LocalIndex with 3-dimensional vectors.
func openTestIndex(t *testing.T) *LocalIndex {
	t.Helper()
	idx, err := Open(":memory:", testModel, 3)
	if err != nil {
		t.Fatalf("open in-memory index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// entry builds a test index entry with the given vector.
func entry(docID string, seq int, vector []float32) rag.IndexEntry {
	return rag.IndexEntry{
		ChunkID:    rag.ChunkID(docID, seq),
		DocumentID: docID,
		SourcePath: "/docs/" + docID + ".txt",
		Seq:        seq,
		Start:      seq * 100,
		End:        seq*100 + 100,
		Text:       "chunk text",
		Vector:     vector,
		Model:      testModel,
	}
}

func Test_LocalIndex_UpsertAndQuery(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)
	ctx := context.Background()

	entries := []rag.IndexEntry{
		entry("doc1", 0, []float32{1, 0, 0}),
		entry("doc1", 1, []float32{0, 1, 0}),
		entry("doc2", 0, []float32{0.9, 0.1, 0}),
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 results, got %d", len(got))
	}
	if got[0].Entry.ChunkID != "doc1-0" {
		t.Errorf("want doc1-0 first (exact match), got %s", got[0].Entry.ChunkID)
	}
	if got[1].Entry.ChunkID != "doc2-0" {
		t.Errorf("want doc2-0 second, got %s", got[1].Entry.ChunkID)
	}
	if math.Abs(float64(got[0].Score)-1.0) > 1e-6 {
		t.Errorf("exact match score: want 1.0, got %v", got[0].Score)
	}
	if got[0].Score < got[1].Score {
		t.Error("results must be ordered by descending score")
	}
}

func Test_LocalIndex_UpsertReplacesByChunkID(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.Upsert(ctx, []rag.IndexEntry{entry("doc1", 0, []float32{1, 0, 0})}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := idx.Upsert(ctx, []rag.IndexEntry{entry("doc1", 0, []float32{0, 0, 1})}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("want 1 entry after replace, got %d", stats.Entries)
	}

	got, err := idx.Query(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if math.Abs(float64(got[0].Score)-1.0) > 1e-6 {
		t.Errorf("replaced vector must be live: want score 1.0, got %v", got[0].Score)
	}
}

func Test_LocalIndex_RejectsWrongDimension(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)
	ctx := context.Background()

	err := idx.Upsert(ctx, []rag.IndexEntry{
		entry("doc1", 0, []float32{1, 0, 0}),
		entry("doc1", 1, []float32{1, 0}),
	})
	if !errors.Is(err, rag.ErrIndexConsistency) {
		t.Fatalf("want ErrIndexConsistency, got %v", err)
	}

	// The whole batch must be rejected, including the valid entry.
	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("failed batch must leave the index unchanged, got %d entries", stats.Entries)
	}
}

func Test_LocalIndex_RejectsWrongModel(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)

	e := entry("doc1", 0, []float32{1, 0, 0})
	e.Model = "other-model"
	err := idx.Upsert(context.Background(), []rag.IndexEntry{e})
	if !errors.Is(err, rag.ErrIndexConsistency) {
		t.Fatalf("want ErrIndexConsistency, got %v", err)
	}
}

func Test_LocalIndex_DeleteByDocument(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)
	ctx := context.Background()

	entries := []rag.IndexEntry{
		entry("doc1", 0, []float32{1, 0, 0}),
		entry("doc1", 1, []float32{0, 1, 0}),
		entry("doc2", 0, []float32{0, 0, 1}),
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := idx.DeleteByDocument(ctx, "doc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 || stats.Documents != 1 {
		t.Errorf("want 1 entry / 1 document after delete, got %d / %d", stats.Entries, stats.Documents)
	}

	got, err := idx.Query(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, s := range got {
		if s.Entry.DocumentID == "doc1" {
			t.Errorf("deleted document entry %s still retrievable", s.Entry.ChunkID)
		}
	}
}

func Test_LocalIndex_QueryTieBreakIsDeterministic(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)
	ctx := context.Background()

	// Identical vectors score identically; order must fall back to lower
	// sequence index, then document ID.
	entries := []rag.IndexEntry{
		entry("docB", 1, []float32{1, 0, 0}),
		entry("docB", 0, []float32{1, 0, 0}),
		entry("docA", 1, []float32{1, 0, 0}),
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	wantOrder := []string{"docB-0", "docA-1", "docB-1"}
	for i, want := range wantOrder {
		if got[i].Entry.ChunkID != want {
			t.Errorf("result[%d]: want %s, got %s", i, want, got[i].Entry.ChunkID)
		}
	}
}

func Test_LocalIndex_QueryEmptyIndex(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)

	got, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("query empty index: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want no results, got %d", len(got))
	}
}

func Test_LocalIndex_ReopenWithDifferentModelFails(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path, testModel, 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := Open(path, "other-model", 3); !errors.Is(err, rag.ErrCorruptIndex) {
		t.Errorf("model change: want ErrCorruptIndex, got %v", err)
	}
	if _, err := Open(path, testModel, 8); !errors.Is(err, rag.ErrCorruptIndex) {
		t.Errorf("dimension change: want ErrCorruptIndex, got %v", err)
	}

	// Matching metadata must still open.
	idx, err = Open(path, testModel, 3)
	if err != nil {
		t.Fatalf("reopen with matching meta: %v", err)
	}
	_ = idx.Close()
}

func Test_LocalIndex_CatalogFingerprint(t *testing.T) {
	t.Parallel()
	idx := openTestIndex(t)
	ctx := context.Background()

	_, found, err := idx.Fingerprint(ctx, "unknown")
	if err != nil {
		t.Fatalf("fingerprint unknown: %v", err)
	}
	if found {
		t.Fatal("unknown document must not be found")
	}

	doc := rag.Document{
		ID:          "doc1",
		SourcePath:  "/docs/a.txt",
		Format:      "txt",
		Text:        "hello world",
		ContentHash: rag.ContentHash("hello world"),
	}
	if err := idx.RecordDocument(ctx, doc, 3); err != nil {
		t.Fatalf("record: %v", err)
	}

	hash, found, err := idx.Fingerprint(ctx, "doc1")
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if !found || hash != doc.ContentHash {
		t.Errorf("want stored hash %s, got %s (found=%v)", doc.ContentHash, hash, found)
	}

	records, err := idx.Documents(ctx)
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(records) != 1 || records[0].ChunkCount != 3 || records[0].Format != "txt" {
		t.Errorf("unexpected catalog records: %+v", records)
	}
}

func Test_Cosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := float64(cosine(tt.a, tt.b))
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func Test_VectorRoundTrip(t *testing.T) {
	t.Parallel()

	v := []float32{0, 1, -1, 0.5, 3.14159, -2.5e-8}
	got := decodeVector(encodeVector(v))
	if len(got) != len(v) {
		t.Fatalf("want %d values, got %d", len(v), len(got))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("value %d: want %v, got %v", i, v[i], got[i])
		}
	}
}
