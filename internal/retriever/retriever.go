// Package retriever builds embedding indexes from chunked documents and
// answers similarity queries against them.
package retriever

import (
	"context"
	"fmt"

	"github.com/csvchat/csvchat/internal/ai"
	"github.com/csvchat/csvchat/internal/chunker"
	"github.com/csvchat/csvchat/internal/vectorstore"
)

// Index couples a vector store with the embedder that populated it. All
// queries go through the embedder the index was built with; a version or
// dimension drift between the two surfaces as ErrVersionMismatch instead
// of silently comparing vectors from different spaces.
type Index struct {
	store    *vectorstore.MemoryStore
	embedder ai.Embedder
}

// Build embeds every document once and constructs a fresh index. The
// operation is all-or-nothing: a failed or cancelled embedding returns an
// error and no index.
func Build(ctx context.Context, docs []chunker.Document, embedder ai.Embedder) (*Index, error) {
	meta := vectorstore.Meta{
		Version:     embedder.Version(),
		Dimension:   embedder.Dimension(),
		Fingerprint: chunker.Fingerprint(docs),
	}

	records := make([]vectorstore.Record, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("index build cancelled: %w", err)
		}

		vector, err := embedder.Embed(ctx, doc.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
		}

		records[i] = vectorstore.Record{
			DocID:  doc.ID,
			Text:   doc.Text,
			Vector: vector,
			Table:  doc.Table,
			Row:    doc.Row,
		}
	}

	store := vectorstore.NewMemoryStore()
	if err := store.Build(meta, records); err != nil {
		return nil, err
	}

	return &Index{store: store, embedder: embedder}, nil
}

// Load restores a persisted index. The persisted version and dimension
// must match the active embedder; otherwise ErrVersionMismatch is returned
// and the caller rebuilds from source.
func Load(ctx context.Context, persist *vectorstore.SQLiteStore, embedder ai.Embedder) (*Index, error) {
	meta, records, err := persist.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	active := vectorstore.Meta{Version: embedder.Version(), Dimension: embedder.Dimension()}
	if !meta.Matches(active) {
		return nil, fmt.Errorf("%w: persisted index %q (dim %d), embedder %q (dim %d)",
			vectorstore.ErrVersionMismatch, meta.Version, meta.Dimension, active.Version, active.Dimension)
	}

	store := vectorstore.NewMemoryStore()
	if err := store.Build(meta, records); err != nil {
		return nil, err
	}

	return &Index{store: store, embedder: embedder}, nil
}

// Save persists the index
func (ix *Index) Save(ctx context.Context, persist *vectorstore.SQLiteStore) error {
	return persist.Save(ctx, ix.store.Meta(), ix.store.Records())
}

// Stale reports whether the index no longer matches the given documents or
// embedder and must be rebuilt. Any change to the source data, the
// embedding model or the vector dimension makes the index stale.
func (ix *Index) Stale(docs []chunker.Document, embedder ai.Embedder) bool {
	meta := ix.store.Meta()
	return meta.Version != embedder.Version() ||
		meta.Dimension != embedder.Dimension() ||
		meta.Fingerprint != chunker.Fingerprint(docs)
}

// Upsert embeds a single document and inserts or replaces its record.
// Fails with ErrVersionMismatch when the active embedder no longer matches
// the index.
func (ix *Index) Upsert(ctx context.Context, doc chunker.Document) error {
	vector, err := ix.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
	}

	meta := vectorstore.Meta{Version: ix.embedder.Version(), Dimension: ix.embedder.Dimension()}
	return ix.store.Upsert(meta, []vectorstore.Record{{
		DocID:  doc.ID,
		Text:   doc.Text,
		Vector: vector,
		Table:  doc.Table,
		Row:    doc.Row,
	}})
}

// Retrieve embeds the question and returns up to topK documents whose
// similarity is at least threshold, in descending score order. An empty
// result is a valid outcome, not an error.
func (ix *Index) Retrieve(ctx context.Context, question string, topK int, threshold float32) ([]vectorstore.SearchResult, error) {
	vector, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := ix.store.Search(vector, topK)
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// Size returns the number of indexed documents
func (ix *Index) Size() int {
	return ix.store.Size()
}

// Meta returns the index identity
func (ix *Index) Meta() vectorstore.Meta {
	return ix.store.Meta()
}
