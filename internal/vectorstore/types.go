// Package vectorstore holds embedded row documents and answers
// nearest-neighbor queries over them by cosine similarity.
package vectorstore

import (
	"errors"
	"fmt"
)

// ErrVersionMismatch is returned when records embedded under a different
// model version or dimension are offered to an index
var ErrVersionMismatch = errors.New("embedding version mismatch")

// Record is one embedded document
type Record struct {
	// DocID is the document identifier, "<table>:<row index>"
	DocID string `json:"doc_id"`

	// Text is the serialized row the vector was computed from
	Text string `json:"text"`

	// Vector is the embedding, under the index's version and dimension
	Vector []float32 `json:"vector"`

	// Table and Row locate the source row
	Table string `json:"table"`
	Row   int    `json:"row"`
}

// Meta identifies what an index was built from and with
type Meta struct {
	// Version tags the embedding model, e.g. "ollama/nomic-embed-text"
	Version string `json:"version"`

	// Dimension is the vector length shared by every record
	Dimension int `json:"dimension"`

	// Fingerprint is the chunking fingerprint of the source documents
	Fingerprint string `json:"fingerprint"`
}

// Matches reports whether an index built with this meta can serve
// queries embedded under the other meta
func (m Meta) Matches(other Meta) bool {
	return m.Version == other.Version && m.Dimension == other.Dimension
}

// SearchResult pairs a record with its similarity to the query
type SearchResult struct {
	Record Record
	Score  float32
}

func versionError(want, got Meta) error {
	if want.Version != got.Version {
		return fmt.Errorf("%w: index %q, records %q", ErrVersionMismatch, want.Version, got.Version)
	}
	return fmt.Errorf("%w: index dimension %d, records %d", ErrVersionMismatch, want.Dimension, got.Dimension)
}
