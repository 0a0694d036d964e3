package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"city: Paris; pop: 2161000",
	"city: Lyon; pop: 513000",
	"city: Marseille; pop: 861000",
}

func TestTFIDFEmbedderFitAndEmbed(t *testing.T) {
	e := NewTFIDFEmbedder(16)
	require.NoError(t, e.Fit(corpus))

	v1, err := e.Embed(context.Background(), "pop of Lyon")
	require.NoError(t, err)
	require.Len(t, v1, 16)

	v2, err := e.Embed(context.Background(), "pop of Lyon")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	lyonDoc, err := e.Embed(context.Background(), corpus[1])
	require.NoError(t, err)
	parisDoc, err := e.Embed(context.Background(), corpus[0])
	require.NoError(t, err)

	assert.Greater(t, CosineSimilarity(v1, lyonDoc), CosineSimilarity(v1, parisDoc))
}

func TestTFIDFEmbedderRequiresFit(t *testing.T) {
	e := NewTFIDFEmbedder(16)

	_, err := e.Embed(context.Background(), "anything")
	require.Error(t, err)
}

func TestTFIDFEmbedderFitEmptyCorpus(t *testing.T) {
	e := NewTFIDFEmbedder(16)
	require.Error(t, e.Fit(nil))
}

func TestTFIDFEmbedderVersion(t *testing.T) {
	e := NewTFIDFEmbedder(16)
	assert.Empty(t, e.Version())

	require.NoError(t, e.Fit(corpus))
	v1 := e.Version()
	assert.Contains(t, v1, "tfidf/")

	// same corpus, same version
	require.NoError(t, e.Fit(corpus))
	assert.Equal(t, v1, e.Version())

	// different corpus, different version
	require.NoError(t, e.Fit([]string{"name: widget; price: 10", "name: gadget; price: 20"}))
	assert.NotEqual(t, v1, e.Version())
}

func TestTFIDFEmbedderEmptyText(t *testing.T) {
	e := NewTFIDFEmbedder(8)
	require.NoError(t, e.Fit(corpus))

	v, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}
