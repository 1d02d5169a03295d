package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// readFile loads the file contents. Split out so extractors stay pure
// byte-to-text functions that tests can drive without touching disk.
func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// extractPlaintext returns the file bytes as text. Invalid UTF-8 is
// rejected rather than silently mangled — a binary file with a .txt
// extension is a corrupt input, not a document.
func extractPlaintext(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return normalize(string(data)), nil
}

// normalize canonicalises line endings and trims surrounding whitespace so
// chunk offsets are stable across platforms.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
