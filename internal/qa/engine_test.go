package qa

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/csvchat/csvchat/internal/ai"
	"github.com/csvchat/csvchat/internal/composer"
	"github.com/csvchat/csvchat/internal/planner"
	"github.com/csvchat/csvchat/internal/query"
	"github.com/csvchat/csvchat/internal/table"
)

// fakeModel serves both the planner and the composer: plan requests get
// the scripted expression JSON, compose requests get the scripted answer
type fakeModel struct {
	planJSON  string
	answer    string
	planCalls int
	textCalls int
}

func (m *fakeModel) Complete(_ context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if strings.Contains(req.SystemPrompt, "query planner") {
		m.planCalls++
		return &ai.CompletionResponse{Content: m.planJSON}, nil
	}
	m.textCalls++
	return &ai.CompletionResponse{Content: m.answer}, nil
}

func (m *fakeModel) CompleteStream(context.Context, *ai.CompletionRequest) (<-chan ai.StreamChunk, error) {
	return nil, errors.New("not supported")
}

func (m *fakeModel) Name() string                          { return "fake" }
func (m *fakeModel) CountTokens(text string) (int, error)  { return len(text) / 4, nil }
func (m *fakeModel) MaxTokens() int                        { return 4096 }
func (m *fakeModel) SupportsStreaming() bool               { return false }
func (m *fakeModel) ValidateConfig() error                 { return nil }
func (m *fakeModel) Close() error                          { return nil }
func (m *fakeModel) TruncateToFit(text string, _ int) (string, error) {
	return text, nil
}

// wordEmbedder embeds by keyword presence, deterministic and model-free
type wordEmbedder struct {
	words   []string
	version string
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(e.words))
	lower := strings.ToLower(text)
	for i, w := range e.words {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v, nil
}

func (e *wordEmbedder) Dimension() int  { return len(e.words) }
func (e *wordEmbedder) Version() string { return e.version }

func newTestStore(t *testing.T) *table.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cities.csv")
	data := "city,pop\nParis,2161000\nLyon,513000\nMarseille,861000\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	store := table.NewStore()
	if _, _, err := store.Load(path); err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestEngine(t *testing.T, model *fakeModel) *Engine {
	t.Helper()

	return NewEngine(newTestStore(t), Options{
		Planner:  planner.New(model, planner.Options{}),
		Composer: composer.New(model, composer.Options{}),
		Embedder: &wordEmbedder{words: []string{"paris", "lyon", "marseille", "pop"}, version: "test/v1"},
	})
}

func TestAskScalarAnswer(t *testing.T) {
	model := &fakeModel{
		planJSON: `{"filter":[{"column":"city","op":"==","value":"Lyon"}],"select":["pop"]}`,
	}
	engine := newTestEngine(t, model)

	answer, err := engine.Ask(context.Background(), "what is the population of Lyon?", "")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.State != StateComposed {
		t.Errorf("state = %s, want %s", answer.State, StateComposed)
	}
	if answer.Text != "513000" {
		t.Errorf("text = %q, want %q", answer.Text, "513000")
	}
	if answer.Expr == nil {
		t.Error("answer carries no expression provenance")
	}

	// scalar results never go back through the model
	if model.textCalls != 0 {
		t.Errorf("compose model calls = %d, want 0", model.textCalls)
	}
}

func TestAskPlanningFailure(t *testing.T) {
	model := &fakeModel{
		planJSON: `{"filter":[{"column":"altitude","op":">","value":100}]}`,
		answer:   "unused",
	}
	engine := newTestEngine(t, model)

	answer, err := engine.Ask(context.Background(), "high cities?", "")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.State != StatePlanningFailed {
		t.Errorf("state = %s, want %s", answer.State, StatePlanningFailed)
	}
	if answer.FailureReason == "" {
		t.Error("FailureReason is empty")
	}
	if answer.Text == "" {
		t.Error("graceful answer text is empty")
	}

	// initial attempt plus the default two retries
	if model.planCalls != 3 {
		t.Errorf("plan calls = %d, want 3", model.planCalls)
	}
}

func TestAskLimitExceededPropagates(t *testing.T) {
	model := &fakeModel{planJSON: `{"select":["city"]}`}
	engine := NewEngine(newTestStore(t), Options{
		Planner:  planner.New(model, planner.Options{}),
		Composer: composer.New(model, composer.Options{}),
		Embedder: &wordEmbedder{words: []string{"pop"}, version: "test/v1"},
		Limits: query.Limits{
			MaxRowsScanned: 1000,
			MaxResultRows:  1,
		},
	})

	_, err := engine.Ask(context.Background(), "list cities", "")
	if err == nil {
		t.Fatal("Ask() succeeded past the result budget")
	}
	if query.KindOf(err) != query.KindLimit {
		t.Errorf("error kind = %s, want %s", query.KindOf(err), query.KindLimit)
	}
}

func TestAskUnknownTable(t *testing.T) {
	engine := newTestEngine(t, &fakeModel{})

	if _, err := engine.Ask(context.Background(), "anything", "trades"); err == nil {
		t.Fatal("Ask() succeeded for an unknown table")
	}
}

func TestAskRetrieve(t *testing.T) {
	model := &fakeModel{answer: "Lyon has 513000 inhabitants."}
	engine := newTestEngine(t, model)

	answer, err := engine.AskRetrieve(context.Background(), "what is the pop of Lyon?", "")
	if err != nil {
		t.Fatalf("AskRetrieve() error = %v", err)
	}

	if answer.State != StateComposed {
		t.Errorf("state = %s, want %s", answer.State, StateComposed)
	}
	if answer.Mode != ModeRetrieve {
		t.Errorf("mode = %s, want %s", answer.Mode, ModeRetrieve)
	}
	if len(answer.Retrieved) == 0 {
		t.Fatal("answer carries no retrieved documents")
	}
	if answer.Retrieved[0].Record.DocID != "cities:1" {
		t.Errorf("top document = %s, want cities:1", answer.Retrieved[0].Record.DocID)
	}
	if answer.Text != model.answer {
		t.Errorf("text = %q", answer.Text)
	}
}

func TestAskRetrieveNothingRelevant(t *testing.T) {
	model := &fakeModel{answer: "unused"}
	engine := newTestEngine(t, model)

	answer, err := engine.AskRetrieve(context.Background(), "weather in tokyo?", "")
	if err != nil {
		t.Fatalf("AskRetrieve() error = %v", err)
	}

	if answer.Text != composer.InsufficientDataAnswer {
		t.Errorf("text = %q, want the fixed insufficient-data answer", answer.Text)
	}
	if model.textCalls != 0 {
		t.Errorf("compose model calls = %d, want 0", model.textCalls)
	}
}

func TestAskRetrieveExplicitZeroThreshold(t *testing.T) {
	model := &fakeModel{answer: "Nothing in the data mentions Tokyo."}
	zero := float32(0)
	engine := NewEngine(newTestStore(t), Options{
		Planner:   planner.New(model, planner.Options{}),
		Composer:  composer.New(model, composer.Options{}),
		Embedder:  &wordEmbedder{words: []string{"paris", "lyon", "marseille", "pop"}, version: "test/v1"},
		Threshold: &zero,
	})

	// a question with no keyword overlap scores 0 against every row;
	// a zero threshold admits them all instead of falling back to the
	// default cutoff
	answer, err := engine.AskRetrieve(context.Background(), "weather in tokyo?", "")
	if err != nil {
		t.Fatalf("AskRetrieve() error = %v", err)
	}

	if len(answer.Retrieved) != 3 {
		t.Fatalf("retrieved = %d documents, want 3", len(answer.Retrieved))
	}
	if answer.Text != model.answer {
		t.Errorf("text = %q, want the composed answer", answer.Text)
	}
	if model.textCalls != 1 {
		t.Errorf("compose model calls = %d, want 1", model.textCalls)
	}
}

func TestAskRetrieveReusesIndex(t *testing.T) {
	model := &fakeModel{answer: "ok"}
	engine := newTestEngine(t, model)

	ctx := context.Background()
	if _, err := engine.AskRetrieve(ctx, "pop of lyon", ""); err != nil {
		t.Fatal(err)
	}
	first := engine.index

	if _, err := engine.AskRetrieve(ctx, "pop of paris", ""); err != nil {
		t.Fatal(err)
	}
	if engine.index != first {
		t.Error("index was rebuilt for unchanged data")
	}

	engine.Invalidate()
	if _, err := engine.AskRetrieve(ctx, "pop of marseille", ""); err != nil {
		t.Fatal(err)
	}
	if engine.index == first {
		t.Error("index was not rebuilt after invalidation")
	}
}

func TestReindex(t *testing.T) {
	engine := newTestEngine(t, &fakeModel{})

	n, err := engine.Reindex(context.Background(), "")
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Reindex() = %d documents, want 3", n)
	}
}
