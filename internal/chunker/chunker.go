// Package chunker turns table rows into retrievable text documents.
//
// Each row becomes exactly one document whose text lists every cell as
// "column: value" pairs. Chunking is deterministic: the same table always
// yields the same documents in the same order, so a fingerprint over the
// output detects when an index no longer matches its source.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/csvchat/csvchat/internal/table"
)

// Document is one row rendered as retrievable text
type Document struct {
	// ID is "<table>:<row index>", stable across identical loads
	ID string

	// Text is the serialized row, "col: value; col: value; ..."
	Text string

	// Table and Row locate the source cell range for provenance
	Table string
	Row   int
}

// Chunk converts every row of the table into one document. Column order
// follows the schema; null cells render as empty values so the document
// always carries the full column list.
func Chunk(t *table.Table) []Document {
	names := t.Columns.Names()

	docs := make([]Document, len(t.Rows))
	for i, row := range t.Rows {
		pairs := make([]string, len(names))
		for j, name := range names {
			pairs[j] = name + ": " + row[j].String()
		}
		docs[i] = Document{
			ID:    fmt.Sprintf("%s:%d", t.Name, i),
			Text:  strings.Join(pairs, "; "),
			Table: t.Name,
			Row:   i,
		}
	}

	return docs
}

// Fingerprint hashes the documents of a chunking run. Two runs over
// identical data produce the same fingerprint; any cell change alters it.
func Fingerprint(docs []Document) string {
	h := sha256.New()
	for _, doc := range docs {
		h.Write([]byte(doc.ID))
		h.Write([]byte{0})
		h.Write([]byte(doc.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
