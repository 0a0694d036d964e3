package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// TFIDFEmbedder is a local, model-free embedder. It must be fitted on the
// document corpus before embedding; the version tag is derived from the
// fitted vocabulary so a refit over different data reads as a new embedding
// version and forces dependent indexes to rebuild.
type TFIDFEmbedder struct {
	mu         sync.RWMutex
	dimensions int
	vocabulary map[string]int
	idf        []float32
	version    string
	fitted     bool

	tokenPattern *regexp.Regexp
	numericOnly  *regexp.Regexp
}

// NewTFIDFEmbedder creates an unfitted TF-IDF embedder with the given
// vector dimension
func NewTFIDFEmbedder(dimensions int) *TFIDFEmbedder {
	return &TFIDFEmbedder{
		dimensions:   dimensions,
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`[^\p{L}\p{N}]+`),
		numericOnly:  regexp.MustCompile(`^\d+$`),
	}
}

// Fit trains the embedder on a corpus of documents
func (e *TFIDFEmbedder) Fit(documents []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(documents) == 0 {
		return fmt.Errorf("cannot fit on empty document corpus")
	}

	e.vocabulary = make(map[string]int)
	e.idf = nil
	e.fitted = false

	wordDocCounts := make(map[string]int)
	for _, doc := range documents {
		unique := make(map[string]bool)
		for _, word := range e.tokenize(doc) {
			unique[word] = true
		}
		for word := range unique {
			wordDocCounts[word]++
		}
	}

	type wordFreq struct {
		word  string
		count int
	}
	freqs := make([]wordFreq, 0, len(wordDocCounts))
	for word, count := range wordDocCounts {
		freqs = append(freqs, wordFreq{word, count})
	}

	// Most frequent words first; ties by word so the vocabulary is stable
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].count != freqs[j].count {
			return freqs[i].count > freqs[j].count
		}
		return freqs[i].word < freqs[j].word
	})

	vocabSize := e.dimensions
	if len(freqs) < vocabSize {
		vocabSize = len(freqs)
	}
	for i := 0; i < vocabSize; i++ {
		e.vocabulary[freqs[i].word] = i
	}

	e.idf = make([]float32, len(e.vocabulary))
	for word, index := range e.vocabulary {
		e.idf[index] = float32(math.Log(float64(len(documents)) / float64(wordDocCounts[word])))
	}

	e.version = e.computeVersion()
	e.fitted = true
	return nil
}

// Embed converts text to a TF-IDF vector
func (e *TFIDFEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.fitted {
		return nil, fmt.Errorf("embedder must be fitted before embedding")
	}

	vector := make([]float32, e.dimensions)

	wordCounts := make(map[string]int)
	totalWords := 0
	for _, word := range e.tokenize(text) {
		wordCounts[word]++
		totalWords++
	}

	if totalWords == 0 {
		return vector, nil
	}

	for word, count := range wordCounts {
		if index, exists := e.vocabulary[word]; exists {
			tf := float32(count) / float32(totalWords)
			vector[index] = tf * e.idf[index]
		}
	}

	return vector, nil
}

// Dimension returns the vector dimension
func (e *TFIDFEmbedder) Dimension() int {
	return e.dimensions
}

// Version returns the identity of the fitted vocabulary, or "" when unfitted
func (e *TFIDFEmbedder) Version() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// computeVersion hashes the vocabulary and dimension. Caller holds the lock.
func (e *TFIDFEmbedder) computeVersion() string {
	words := make([]string, 0, len(e.vocabulary))
	for word := range e.vocabulary {
		words = append(words, word)
	}
	sort.Strings(words)

	h := sha256.New()
	fmt.Fprintf(h, "dim=%d;", e.dimensions)
	for _, word := range words {
		h.Write([]byte(word))
		h.Write([]byte{0})
	}

	return "tfidf/" + hex.EncodeToString(h.Sum(nil))[:12]
}

// tokenize splits text into lowercased alphanumeric words, skipping
// single characters and purely numeric tokens
func (e *TFIDFEmbedder) tokenize(text string) []string {
	text = e.tokenPattern.ReplaceAllString(strings.ToLower(text), " ")

	var words []string
	for _, word := range strings.Fields(text) {
		if len(word) < 2 || e.numericOnly.MatchString(word) {
			continue
		}
		words = append(words, word)
	}

	return words
}
