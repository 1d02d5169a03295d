// Package index provides the vector index backends: a local SQLite index
// that stores embeddings as BLOBs and ranks by brute-force cosine
// similarity, and a remote Qdrant index for larger corpora. Both enforce
// index-wide model and dimension consistency. A SQLite document catalog
// tracks content fingerprints so re-ingesting unchanged documents is a
// no-op regardless of backend.
package index

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/olifarhaan/rag-console-chat/internal/rag"
)

// encodeVector serializes a float32 vector into a little-endian byte blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes a little-endian byte blob into a float32 vector.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

// cosine computes the cosine similarity of two equal-length vectors.
// A zero-magnitude vector yields similarity 0.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// rank sorts scored entries descending by score. Equal scores are ordered
// by lower chunk sequence index, then by document ID, so results are
// deterministic across runs.
func rank(scored rag.RetrievalResult) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Entry.Seq != scored[j].Entry.Seq {
			return scored[i].Entry.Seq < scored[j].Entry.Seq
		}
		return scored[i].Entry.DocumentID < scored[j].Entry.DocumentID
	})
}
