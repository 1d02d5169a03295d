// Package extract implements the text-extraction collaborator of the
// pipeline: turning a source file into raw text. Format-specific extractors
// are selected by file extension with a content-sniffing fallback, so the
// pipeline never branches on format itself.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// extractFunc converts raw file bytes into text.
type extractFunc func(data []byte) (string, error)

// Registry maps source formats to their extractors and implements
// rag.Extractor. The zero value is not usable; construct with New.
type Registry struct {
	// byExtension maps a lowercase file extension (with dot) to its format.
	byExtension map[string]string

	// byFormat maps a format label to its extractor.
	byFormat map[string]extractFunc
}

// New returns a Registry with the supported formats registered:
// plain text (.txt, .text, .md, .markdown), PDF, and DOCX.
func New() *Registry {
	return &Registry{
		byExtension: map[string]string{
			".txt":      "txt",
			".text":     "txt",
			".md":       "md",
			".markdown": "md",
			".pdf":      "pdf",
			".docx":     "docx",
		},
		byFormat: map[string]extractFunc{
			"txt":  extractPlaintext,
			"md":   extractPlaintext,
			"pdf":  extractPDF,
			"docx": extractDOCX,
		},
	}
}

// Supported reports whether the registry has an extractor for the file.
func (r *Registry) Supported(path string) bool {
	_, ok := r.byExtension[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Format returns the format label the registry would use for the file, or
// empty string if unsupported.
func (r *Registry) Format(path string) string {
	return r.byExtension[strings.ToLower(filepath.Ext(path))]
}

// Extract reads the file at path and returns its text content. An unknown
// extension fails with rag.ErrUnsupportedFormat; a file that matched a
// format but cannot be parsed fails with rag.ErrCorruptFile. Both are
// per-document failures the ingestion pipeline isolates.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format, ok := r.byExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("extract: %s: %w", path, rag.ErrUnsupportedFormat)
	}

	data, err := readFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: read %s: %w: %v", path, rag.ErrCorruptFile, err)
	}

	// Extension can lie; sniff container formats so a mislabelled file
	// fails cleanly instead of producing garbage text.
	if sniffed := sniff(data); sniffed != "" && sniffed != format {
		if fn, ok := r.byFormat[sniffed]; ok {
			format = sniffed
			return runExtractor(fn, data, path)
		}
	}

	fn := r.byFormat[format]
	return runExtractor(fn, data, path)
}

// runExtractor applies fn and wraps parse failures as ErrCorruptFile.
func runExtractor(fn extractFunc, data []byte, path string) (string, error) {
	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("extract: parse %s: %w: %v", path, rag.ErrCorruptFile, err)
	}
	return text, nil
}

// sniff inspects magic bytes and returns the detected container format, or
// empty string when the content is not a recognised container.
func sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return "pdf"
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return "docx"
	default:
		return ""
	}
}
