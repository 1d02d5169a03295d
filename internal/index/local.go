package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// LocalIndex is a rag.VectorIndex backed by a local SQLite database.
// Embeddings are stored as little-endian float32 BLOBs and queries rank
// every entry by cosine similarity, which is exact and fast enough for
// corpora in the tens of thousands of chunks. It also serves as the
// document Catalog.
type LocalIndex struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// model is the embedding model identifier bound to this index.
	model string

	// dimension is the index-wide vector dimension.
	dimension int
}

// Open opens (or creates) a LocalIndex at the given path, runs the schema
// migration, and binds the index to the given embedding model and vector
// dimension. Opening an existing index recorded under a different model or
// dimension fails with ErrCorruptIndex. Use ":memory:" for tests.
func Open(path, model string, dimension int) (*LocalIndex, error) {
	if model == "" || dimension <= 0 {
		return nil, fmt.Errorf("index: model and dimension are required: %w", rag.ErrConfig)
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	idx := &LocalIndex{db: db, model: model, dimension: dimension}
	if err := idx.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := idx.bindMeta(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// migrate creates the schema if it does not already exist.
func (x *LocalIndex) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS index_meta (
    id          INTEGER PRIMARY KEY CHECK(id = 1),
    model       TEXT    NOT NULL,
    dimension   INTEGER NOT NULL,
    metric      TEXT    NOT NULL DEFAULT 'cosine'
);
CREATE TABLE IF NOT EXISTS entries (
    chunk_id     TEXT    PRIMARY KEY,
    document_id  TEXT    NOT NULL,
    source_path  TEXT    NOT NULL,
    seq          INTEGER NOT NULL,
    start        INTEGER NOT NULL,
    "end"        INTEGER NOT NULL,
    text         TEXT    NOT NULL,
    vector       BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_document
    ON entries (document_id);
CREATE TABLE IF NOT EXISTS documents (
    id            TEXT    PRIMARY KEY,
    source_path   TEXT    NOT NULL,
    format        TEXT    NOT NULL,
    content_hash  TEXT    NOT NULL,
    chunk_count   INTEGER NOT NULL,
    ingested_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := x.db.Exec(ddl); err != nil {
		return fmt.Errorf("index: migrate: %w", err)
	}
	return nil
}

// bindMeta records the active model and dimension on first open, and on
// subsequent opens verifies that the stored metadata still matches.
func (x *LocalIndex) bindMeta() error {
	var model string
	var dimension int
	err := x.db.QueryRow(`SELECT model, dimension FROM index_meta WHERE id = 1`).Scan(&model, &dimension)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = x.db.Exec(`INSERT INTO index_meta (id, model, dimension) VALUES (1, ?, ?)`, x.model, x.dimension)
		if err != nil {
			return fmt.Errorf("index: bind meta: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("index: read meta: %w", err)
	}

	if model != x.model || dimension != x.dimension {
		return fmt.Errorf("index: built with model %s (%d dims), configured for %s (%d dims): %w",
			model, dimension, x.model, x.dimension, rag.ErrCorruptIndex)
	}
	return nil
}

// Upsert inserts or replaces entries by chunk ID inside a single
// transaction. Every entry is validated against the index model and
// dimension before any write, so a bad batch leaves the index unchanged.
func (x *LocalIndex) Upsert(ctx context.Context, entries []rag.IndexEntry) error {
	for _, e := range entries {
		if e.Model != x.model {
			return fmt.Errorf("index: entry %s embedded with model %s, index bound to %s: %w",
				e.ChunkID, e.Model, x.model, rag.ErrIndexConsistency)
		}
		if len(e.Vector) != x.dimension {
			return fmt.Errorf("index: entry %s has dimension %d, index bound to %d: %w",
				e.ChunkID, len(e.Vector), x.dimension, rag.ErrIndexConsistency)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
INSERT OR REPLACE INTO entries (chunk_id, document_id, source_path, seq, start, "end", text, vector)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, q,
			e.ChunkID, e.DocumentID, e.SourcePath, e.Seq, e.Start, e.End, e.Text, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("index: upsert %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit upsert: %w", err)
	}
	return nil
}

// DeleteByDocument removes every entry belonging to the document along
// with its catalog record.
func (x *LocalIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("index: delete entries for %s: %w", documentID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return fmt.Errorf("index: delete document %s: %w", documentID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit delete: %w", err)
	}
	return nil
}

// Query scans every stored entry, scores it against the query vector by
// cosine similarity, and returns the top k in deterministic rank order.
func (x *LocalIndex) Query(ctx context.Context, vector []float32, k int) (rag.RetrievalResult, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("index: query vector has dimension %d, index bound to %d: %w",
			len(vector), x.dimension, rag.ErrIndexConsistency)
	}
	if k <= 0 {
		return rag.RetrievalResult{}, nil
	}

	const q = `SELECT chunk_id, document_id, source_path, seq, start, "end", text, vector FROM entries`
	rows, err := x.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer rows.Close()

	var scored rag.RetrievalResult
	for rows.Next() {
		var e rag.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.ChunkID, &e.DocumentID, &e.SourcePath, &e.Seq, &e.Start, &e.End, &e.Text, &blob); err != nil {
			return nil, fmt.Errorf("index: query scan: %w", err)
		}
		if len(blob) != 4*x.dimension {
			return nil, fmt.Errorf("index: entry %s has a malformed vector blob: %w", e.ChunkID, rag.ErrCorruptIndex)
		}
		e.Vector = decodeVector(blob)
		e.Model = x.model
		scored = append(scored, rag.Scored{Entry: e, Score: cosine(vector, e.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: query rows: %w", err)
	}

	rank(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Stats reports the current index contents.
func (x *LocalIndex) Stats(ctx context.Context) (rag.IndexStats, error) {
	stats := rag.IndexStats{Model: x.model, Dimension: x.dimension}
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT document_id) FROM entries`).
		Scan(&stats.Entries, &stats.Documents)
	if err != nil {
		return rag.IndexStats{}, fmt.Errorf("index: stats: %w", err)
	}
	return stats, nil
}

// Fingerprint returns the stored content hash for a document, reporting
// whether the document is known to the catalog.
func (x *LocalIndex) Fingerprint(ctx context.Context, documentID string) (string, bool, error) {
	var hash string
	err := x.db.QueryRowContext(ctx, `SELECT content_hash FROM documents WHERE id = ?`, documentID).Scan(&hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("index: fingerprint %s: %w", documentID, err)
	}
	return hash, true, nil
}

// RecordDocument inserts or replaces the catalog record for a document.
func (x *LocalIndex) RecordDocument(ctx context.Context, doc rag.Document, chunkCount int) error {
	const q = `
INSERT OR REPLACE INTO documents (id, source_path, format, content_hash, chunk_count, ingested_at)
VALUES (?, ?, ?, ?, ?, ?)`
	when := doc.IngestedAt
	if when.IsZero() {
		when = time.Now()
	}
	_, err := x.db.ExecContext(ctx, q, doc.ID, doc.SourcePath, doc.Format, doc.ContentHash, chunkCount, when.Unix())
	if err != nil {
		return fmt.Errorf("index: record document %s: %w", doc.ID, err)
	}
	return nil
}

// Documents returns the catalog records, ordered by source path.
func (x *LocalIndex) Documents(ctx context.Context) ([]DocumentRecord, error) {
	const q = `SELECT id, source_path, format, content_hash, chunk_count, ingested_at FROM documents ORDER BY source_path`
	rows, err := x.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("index: documents: %w", err)
	}
	defer rows.Close()

	var records []DocumentRecord
	for rows.Next() {
		var r DocumentRecord
		var ts int64
		if err := rows.Scan(&r.ID, &r.SourcePath, &r.Format, &r.ContentHash, &r.ChunkCount, &ts); err != nil {
			return nil, fmt.Errorf("index: documents scan: %w", err)
		}
		r.IngestedAt = time.Unix(ts, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: documents rows: %w", err)
	}
	return records, nil
}

// Close releases the database connection pool.
func (x *LocalIndex) Close() error {
	if err := x.db.Close(); err != nil {
		return fmt.Errorf("index: close: %w", err)
	}
	return nil
}
