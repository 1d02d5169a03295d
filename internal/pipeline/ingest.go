package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/olifarhaan/rag-console-chat/internal/logging"
	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// DocumentFailure records one document the ingestion run could not index.
type DocumentFailure struct {
	// SourcePath is the file that failed.
	SourcePath string

	// Err is the failure cause.
	Err error
}

// Report summarizes an ingestion run. One failed document never aborts the
// run; the remaining documents are still processed.
type Report struct {
	// Succeeded counts documents chunked, embedded, and indexed.
	Succeeded int

	// Skipped counts documents whose content fingerprint was unchanged.
	Skipped int

	// Failed lists the documents that could not be indexed, sorted by path.
	Failed []DocumentFailure
}

// Ingest scans dir for supported documents and runs each through the
// extract, chunk, embed, index stages on a bounded worker pool. Unchanged
// documents (same content fingerprint) are skipped; changed documents have
// their stale entries removed before re-indexing. Returns an error only
// when the scan itself fails or ctx is cancelled.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (*Report, error) {
	paths, err := p.scan(dir)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	log.Info("ingestion started", "dir", dir, "documents", len(paths), "workers", p.cfg.Workers)

	var (
		mu     sync.Mutex
		report Report
		wg     sync.WaitGroup
	)
	jobs := make(chan string)

	for range p.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				outcome, err := p.ingestDocument(ctx, path)

				mu.Lock()
				switch {
				case err != nil:
					report.Failed = append(report.Failed, DocumentFailure{SourcePath: path, Err: err})
					p.metrics.documentsTotal.WithLabelValues("failed").Inc()
					log.Warn("document failed", "path", path, "error", err)
				case outcome == outcomeSkipped:
					report.Skipped++
					p.metrics.documentsTotal.WithLabelValues("skipped").Inc()
					log.Debug("document unchanged", "path", path)
				default:
					report.Succeeded++
					p.metrics.documentsTotal.WithLabelValues("indexed").Inc()
				}
				mu.Unlock()
			}
		}()
	}

	var cancelled error
feed:
	for _, path := range paths {
		select {
		case jobs <- path:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled != nil {
		return nil, fmt.Errorf("pipeline: ingestion cancelled: %w", cancelled)
	}

	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].SourcePath < report.Failed[j].SourcePath
	})
	log.Info("ingestion finished",
		"succeeded", report.Succeeded, "skipped", report.Skipped, "failed", len(report.Failed))
	return &report, nil
}

// scan walks dir and returns the sorted paths of all supported files.
func (p *Pipeline) scan(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p.deps.Extractor.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pipeline: docs directory %s does not exist: %w", dir, rag.ErrConfig)
		}
		return nil, fmt.Errorf("pipeline: scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

type documentOutcome int

const (
	outcomeIndexed documentOutcome = iota
	outcomeSkipped
)

// ingestDocument runs one document through the staged flow. A failure at
// any stage reports the document failed and leaves previously indexed
// content for that document untouched.
func (p *Pipeline) ingestDocument(ctx context.Context, path string) (documentOutcome, error) {
	text, err := p.deps.Extractor.Extract(ctx, path)
	if err != nil {
		return 0, err
	}

	doc := rag.Document{
		ID:          rag.DocumentID(path),
		SourcePath:  path,
		Format:      p.deps.Extractor.Format(path),
		Text:        text,
		ContentHash: rag.ContentHash(text),
		IngestedAt:  time.Now(),
	}

	known, exists, err := p.deps.Catalog.Fingerprint(ctx, doc.ID)
	if err != nil {
		return 0, err
	}
	if exists && known == doc.ContentHash {
		return outcomeSkipped, nil
	}
	if exists {
		// Content changed: drop the stale entries before re-indexing.
		if err := p.deps.Index.DeleteByDocument(ctx, doc.ID); err != nil {
			return 0, err
		}
	}

	chunks := p.deps.Chunker.Split(doc.ID, doc.Text)
	if len(chunks) == 0 {
		if err := p.deps.Catalog.RecordDocument(ctx, doc, 0); err != nil {
			return 0, err
		}
		return outcomeIndexed, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.deps.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	entries := make([]rag.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = rag.IndexEntry{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			SourcePath: doc.SourcePath,
			Seq:        c.Seq,
			Start:      c.Start,
			End:        c.End,
			Text:       c.Text,
			Vector:     vectors[i],
			Model:      p.deps.Embedder.Model(),
		}
	}
	if err := p.deps.Index.Upsert(ctx, entries); err != nil {
		return 0, err
	}
	if err := p.deps.Catalog.RecordDocument(ctx, doc, len(chunks)); err != nil {
		return 0, err
	}

	p.metrics.chunksIndexedTotal.Add(float64(len(entries)))
	return outcomeIndexed, nil
}
