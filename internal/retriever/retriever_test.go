package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/csvchat/csvchat/internal/chunker"
	"github.com/csvchat/csvchat/internal/vectorstore"
)

// keywordEmbedder maps known keywords to fixed axes, giving predictable
// similarities without a model
type keywordEmbedder struct {
	keywords []string
	version  string
	err      error
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}

	v := make([]float32, len(e.keywords))
	lower := strings.ToLower(text)
	for i, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	return v, nil
}

func (e *keywordEmbedder) Dimension() int  { return len(e.keywords) }
func (e *keywordEmbedder) Version() string { return e.version }

func testEmbedder() *keywordEmbedder {
	return &keywordEmbedder{
		keywords: []string{"paris", "lyon", "marseille", "pop"},
		version:  "test/v1",
	}
}

func testDocs() []chunker.Document {
	return []chunker.Document{
		{ID: "cities:0", Text: "city: Paris; pop: 2161000", Table: "cities", Row: 0},
		{ID: "cities:1", Text: "city: Lyon; pop: 513000", Table: "cities", Row: 1},
		{ID: "cities:2", Text: "city: Marseille; pop: 861000", Table: "cities", Row: 2},
	}
}

func TestBuildAndRetrieve(t *testing.T) {
	ix, err := Build(context.Background(), testDocs(), testEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if ix.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", ix.Size())
	}

	results, err := ix.Retrieve(context.Background(), "what is the pop of Lyon?", 2, 0.1)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Retrieve() returned no results")
	}
	if results[0].Record.DocID != "cities:1" {
		t.Errorf("top result = %s, want cities:1", results[0].Record.DocID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not in descending score order")
		}
	}
}

func TestRetrieveThreshold(t *testing.T) {
	ix, err := Build(context.Background(), testDocs(), testEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	results, err := ix.Retrieve(context.Background(), "pop of lyon", 3, 0.5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	for _, r := range results {
		if r.Score < 0.5 {
			t.Errorf("result %s score %f below threshold", r.Record.DocID, r.Score)
		}
	}
}

func TestRetrieveEmptyIsValid(t *testing.T) {
	ix, err := Build(context.Background(), testDocs(), testEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// no keyword overlap, every score is 0 and below the threshold
	results, err := ix.Retrieve(context.Background(), "weather in tokyo", 3, 0.1)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Retrieve() = %d results, want 0", len(results))
	}
}

func TestBuildEmbedFailure(t *testing.T) {
	e := testEmbedder()
	e.err = errors.New("embedding service down")

	if _, err := Build(context.Background(), testDocs(), e); err == nil {
		t.Fatal("Build() succeeded with a failing embedder")
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Build(ctx, testDocs(), testEmbedder()); err == nil {
		t.Fatal("Build() succeeded with a cancelled context")
	}
}

func TestStale(t *testing.T) {
	docs := testDocs()
	embedder := testEmbedder()

	ix, err := Build(context.Background(), docs, embedder)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if ix.Stale(docs, embedder) {
		t.Error("fresh index reported stale")
	}

	// changed data
	changed := testDocs()
	changed[0].Text = "city: Paris; pop: 2161001"
	if !ix.Stale(changed, embedder) {
		t.Error("index not stale after data change")
	}

	// changed embedder version
	v2 := testEmbedder()
	v2.version = "test/v2"
	if !ix.Stale(docs, v2) {
		t.Error("index not stale after version change")
	}
}

func TestUpsertVersionMismatch(t *testing.T) {
	ix, err := Build(context.Background(), testDocs(), testEmbedder())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// embedder drifted to a new version after the build
	ix.embedder = &keywordEmbedder{keywords: []string{"paris", "lyon", "marseille", "pop"}, version: "test/v2"}

	err = ix.Upsert(context.Background(), testDocs()[0])
	if !errors.Is(err, vectorstore.ErrVersionMismatch) {
		t.Fatalf("Upsert() error = %v, want ErrVersionMismatch", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	embedder := testEmbedder()
	ix, err := Build(context.Background(), testDocs(), embedder)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	persist, err := vectorstore.NewSQLiteStore(t.TempDir() + "/index.db")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer func() { _ = persist.Close() }()

	ctx := context.Background()
	if err := ix.Save(ctx, persist); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(ctx, persist, embedder)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Size() != 3 {
		t.Errorf("loaded Size() = %d, want 3", loaded.Size())
	}
	if loaded.Meta() != ix.Meta() {
		t.Errorf("loaded meta = %+v, want %+v", loaded.Meta(), ix.Meta())
	}

	// a different embedder version must refuse the persisted index
	v2 := testEmbedder()
	v2.version = "test/v2"
	if _, err := Load(ctx, persist, v2); !errors.Is(err, vectorstore.ErrVersionMismatch) {
		t.Fatalf("Load() error = %v, want ErrVersionMismatch", err)
	}
}
