package vectorstore

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory vector index. Reads take a snapshot under a
// read lock; Build swaps the whole index atomically, so searches running
// concurrently with a rebuild see either the old index or the new one,
// never a mix.
type MemoryStore struct {
	mu      sync.RWMutex
	meta    Meta
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory index
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

// Build replaces the entire index with the given records. The operation is
// all-or-nothing: a record whose vector does not match the meta dimension
// fails the whole build and leaves the previous index in place.
func (ms *MemoryStore) Build(meta Meta, records []Record) error {
	fresh := make(map[string]Record, len(records))
	for _, rec := range records {
		if len(rec.Vector) != meta.Dimension {
			return versionError(meta, Meta{Version: meta.Version, Dimension: len(rec.Vector)})
		}
		fresh[rec.DocID] = rec
	}

	ms.mu.Lock()
	ms.meta = meta
	ms.records = fresh
	ms.mu.Unlock()

	return nil
}

// Upsert inserts or replaces records in the current index. Records must
// carry vectors under the index's version and dimension; a mismatch
// rejects the whole batch.
func (ms *MemoryStore) Upsert(meta Meta, records []Record) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.meta.Matches(meta) {
		return versionError(ms.meta, meta)
	}

	for _, rec := range records {
		if len(rec.Vector) != ms.meta.Dimension {
			return versionError(ms.meta, Meta{Version: meta.Version, Dimension: len(rec.Vector)})
		}
	}

	for _, rec := range records {
		ms.records[rec.DocID] = rec
	}

	return nil
}

// Search returns the topK records most similar to the query vector, in
// descending similarity order. Equal scores break ties by source position
// (table name, then row index) so results are deterministic and row 2
// sorts before row 10. topK larger than the index is clamped.
func (ms *MemoryStore) Search(vector []float32, topK int) ([]SearchResult, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if len(vector) != ms.meta.Dimension {
		return nil, versionError(ms.meta, Meta{Version: ms.meta.Version, Dimension: len(vector)})
	}

	if topK <= 0 || len(ms.records) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(ms.records))
	for _, rec := range ms.records {
		results = append(results, SearchResult{
			Record: rec,
			Score:  CosineSimilarity(vector, rec.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Record.Table != results[j].Record.Table {
			return results[i].Record.Table < results[j].Record.Table
		}
		return results[i].Record.Row < results[j].Record.Row
	})

	if topK > len(results) {
		topK = len(results)
	}

	return results[:topK], nil
}

// Meta returns the index identity
func (ms *MemoryStore) Meta() Meta {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.meta
}

// Size returns the number of indexed records
func (ms *MemoryStore) Size() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records)
}

// Get retrieves a record by document ID
func (ms *MemoryStore) Get(docID string) (Record, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, ok := ms.records[docID]
	return rec, ok
}

// Records returns a copy of all records, ordered by DocID
func (ms *MemoryStore) Records() []Record {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	records := make([]Record, 0, len(ms.records))
	for _, rec := range ms.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DocID < records[j].DocID
	})

	return records
}

// Validate checks internal consistency, used after loading a persisted index
func (ms *MemoryStore) Validate() error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for id, rec := range ms.records {
		if len(rec.Vector) != ms.meta.Dimension {
			return fmt.Errorf("record %s has dimension %d, index expects %d", id, len(rec.Vector), ms.meta.Dimension)
		}
	}
	return nil
}
