package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeta() Meta {
	return Meta{Version: "test/v1", Dimension: 3, Fingerprint: "abc"}
}

func testRecords() []Record {
	return []Record{
		{DocID: "cities:0", Text: "city: Paris", Vector: []float32{1, 0, 0}, Table: "cities", Row: 0},
		{DocID: "cities:1", Text: "city: Lyon", Vector: []float32{0, 1, 0}, Table: "cities", Row: 1},
		{DocID: "cities:2", Text: "city: Nice", Vector: []float32{0.9, 0.1, 0}, Table: "cities", Row: 2},
	}
}

func TestMemoryStoreBuildAndSearch(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Build(testMeta(), testRecords()))
	require.Equal(t, 3, store.Size())

	results, err := store.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "cities:0", results[0].Record.DocID)
	assert.Equal(t, "cities:2", results[1].Record.DocID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryStoreSearchTieBreak(t *testing.T) {
	store := NewMemoryStore()
	records := []Record{
		{DocID: "t:10", Vector: []float32{1, 0, 0}, Table: "t", Row: 10},
		{DocID: "t:0", Vector: []float32{1, 0, 0}, Table: "t", Row: 0},
		{DocID: "t:2", Vector: []float32{1, 0, 0}, Table: "t", Row: 2},
	}
	require.NoError(t, store.Build(testMeta(), records))

	results, err := store.Search([]float32{1, 0, 0}, 3)
	require.NoError(t, err)

	// equal scores come back in ascending row order, numerically:
	// row 2 before row 10, not the lexical "t:10" < "t:2"
	assert.Equal(t, "t:0", results[0].Record.DocID)
	assert.Equal(t, "t:2", results[1].Record.DocID)
	assert.Equal(t, "t:10", results[2].Record.DocID)
}

func TestMemoryStoreSearchClampsTopK(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Build(testMeta(), testRecords()))

	results, err := store.Search([]float32{1, 0, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = store.Search([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreBuildRejectsBadDimension(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Build(testMeta(), testRecords()))

	bad := []Record{{DocID: "x", Vector: []float32{1, 2}}}
	err := store.Build(testMeta(), bad)
	require.ErrorIs(t, err, ErrVersionMismatch)

	// failed build leaves the previous index intact
	assert.Equal(t, 3, store.Size())
}

func TestMemoryStoreUpsert(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Build(testMeta(), testRecords()))

	updated := []Record{{DocID: "cities:0", Text: "updated", Vector: []float32{0, 0, 1}}}
	require.NoError(t, store.Upsert(testMeta(), updated))

	rec, ok := store.Get("cities:0")
	require.True(t, ok)
	assert.Equal(t, "updated", rec.Text)
	assert.Equal(t, 3, store.Size())
}

func TestMemoryStoreUpsertVersionMismatch(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Build(testMeta(), testRecords()))

	other := Meta{Version: "other/v2", Dimension: 3}
	err := store.Upsert(other, []Record{{DocID: "x", Vector: []float32{1, 0, 0}}})
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestMemoryStoreSearchQueryDimensionMismatch(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Build(testMeta(), testRecords()))

	_, err := store.Search([]float32{1, 0}, 1)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}
