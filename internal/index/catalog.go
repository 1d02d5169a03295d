package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// DocumentRecord is a catalog row describing one ingested document.
type DocumentRecord struct {
	// ID is the document identifier.
	ID string
	// SourcePath is the file the document was read from.
	SourcePath string
	// Format is the source format label.
	Format string
	// ContentHash is the hex-encoded SHA-256 of the extracted text.
	ContentHash string
	// ChunkCount is how many chunks the document produced.
	ChunkCount int
	// IngestedAt is when the document was last indexed.
	IngestedAt time.Time
}

// Catalog tracks ingested documents and their content fingerprints so the
// pipeline can skip unchanged documents on re-ingest. Implementations must
// be safe for concurrent use.
type Catalog interface {
	// Fingerprint returns the stored content hash for a document and
	// whether the document is known.
	Fingerprint(ctx context.Context, documentID string) (string, bool, error)

	// RecordDocument inserts or replaces the catalog record.
	RecordDocument(ctx context.Context, doc rag.Document, chunkCount int) error

	// Documents returns all catalog records, ordered by source path.
	Documents(ctx context.Context) ([]DocumentRecord, error)
}

// SQLiteCatalog is a standalone Catalog for deployments where the vector
// index itself lives in a remote backend. The local index embeds the same
// tables and does not need one.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenCatalog opens (or creates) a SQLiteCatalog at the given path.
// Use ":memory:" for tests.
func OpenCatalog(path string) (*SQLiteCatalog, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open catalog %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id            TEXT    PRIMARY KEY,
    source_path   TEXT    NOT NULL,
    format        TEXT    NOT NULL,
    content_hash  TEXT    NOT NULL,
    chunk_count   INTEGER NOT NULL,
    ingested_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS catalog_meta (
    id          INTEGER PRIMARY KEY CHECK(id = 1),
    model       TEXT    NOT NULL,
    dimension   INTEGER NOT NULL
);
`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("index: migrate catalog: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

// BindModel records the embedding model and dimension behind the paired
// remote index on first open, and on later opens verifies they are
// unchanged. The remote backend stores no model identifier of its own, so
// the catalog carries the binding.
func (c *SQLiteCatalog) BindModel(model string, dimension int) error {
	var storedModel string
	var storedDim int
	err := c.db.QueryRow(`SELECT model, dimension FROM catalog_meta WHERE id = 1`).Scan(&storedModel, &storedDim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := c.db.Exec(`INSERT INTO catalog_meta (id, model, dimension) VALUES (1, ?, ?)`, model, dimension); err != nil {
			return fmt.Errorf("index: bind catalog meta: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("index: read catalog meta: %w", err)
	}

	if storedModel != model || storedDim != dimension {
		return fmt.Errorf("index: catalog built with model %s (%d dims), configured for %s (%d dims): %w",
			storedModel, storedDim, model, dimension, rag.ErrCorruptIndex)
	}
	return nil
}

// Fingerprint returns the stored content hash for a document.
func (c *SQLiteCatalog) Fingerprint(ctx context.Context, documentID string) (string, bool, error) {
	var hash string
	err := c.db.QueryRowContext(ctx, `SELECT content_hash FROM documents WHERE id = ?`, documentID).Scan(&hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("index: fingerprint %s: %w", documentID, err)
	}
	return hash, true, nil
}

// RecordDocument inserts or replaces the catalog record for a document.
func (c *SQLiteCatalog) RecordDocument(ctx context.Context, doc rag.Document, chunkCount int) error {
	const q = `
INSERT OR REPLACE INTO documents (id, source_path, format, content_hash, chunk_count, ingested_at)
VALUES (?, ?, ?, ?, ?, ?)`
	when := doc.IngestedAt
	if when.IsZero() {
		when = time.Now()
	}
	_, err := c.db.ExecContext(ctx, q, doc.ID, doc.SourcePath, doc.Format, doc.ContentHash, chunkCount, when.Unix())
	if err != nil {
		return fmt.Errorf("index: record document %s: %w", doc.ID, err)
	}
	return nil
}

// Documents returns the catalog records, ordered by source path.
func (c *SQLiteCatalog) Documents(ctx context.Context) ([]DocumentRecord, error) {
	const q = `SELECT id, source_path, format, content_hash, chunk_count, ingested_at FROM documents ORDER BY source_path`
	rows, err := c.db.QueryContext(ctx, q)
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
func (c *SQLiteCatalog) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("index: close catalog: %w", err)
	}
	return nil
}
