// Package qa orchestrates the two question-answering pipelines: query
// generation (plan, execute, compose) and retrieval (chunk, embed,
// retrieve, compose).
package qa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/csvchat/csvchat/internal/ai"
	"github.com/csvchat/csvchat/internal/chunker"
	"github.com/csvchat/csvchat/internal/composer"
	"github.com/csvchat/csvchat/internal/logger"
	"github.com/csvchat/csvchat/internal/planner"
	"github.com/csvchat/csvchat/internal/query"
	"github.com/csvchat/csvchat/internal/retriever"
	"github.com/csvchat/csvchat/internal/table"
	"github.com/csvchat/csvchat/internal/vectorstore"
)

const (
	defaultTopK      = 4
	defaultThreshold = 0.1
)

// Answer is the outcome of one question. Failed pipelines still produce
// an Answer with a graceful text and a terminal failure state; only
// budget exhaustion and an unavailable model surface as errors.
type Answer struct {
	Question string
	Text     string
	Mode     Mode
	State    State
	Elapsed  time.Duration

	// Expr is the executed expression on the generation path (provenance)
	Expr *query.Expression

	// Retrieved holds the context documents on the retrieval path
	Retrieved []vectorstore.SearchResult

	// FailureReason explains a PlanningFailed or ExecutionFailed state
	FailureReason string
}

// Options configures an Engine
type Options struct {
	Planner  *planner.Planner
	Composer *composer.Composer
	Embedder ai.Embedder
	Limits   query.Limits
	TopK     int

	// Threshold is the minimum retrieval similarity score. Nil selects
	// the default; an explicit zero admits every scored document.
	Threshold *float32

	// Persist, when set, backs the embedding index with SQLite
	Persist *vectorstore.SQLiteStore

	Logger *logger.Logger
}

// Engine answers questions about the tables in a store
type Engine struct {
	store   *table.Store
	options Options
	log     *logger.Logger

	mu    sync.Mutex
	index *retriever.Index
}

// NewEngine creates an Engine over a table store
func NewEngine(store *table.Store, options Options) *Engine {
	if options.TopK <= 0 {
		options.TopK = defaultTopK
	}
	if options.Threshold == nil {
		threshold := float32(defaultThreshold)
		options.Threshold = &threshold
	}
	if options.Limits == (query.Limits{}) {
		options.Limits = query.DefaultLimits()
	}

	log := options.Logger
	if log == nil {
		log = logger.NewWithCallback("qa", nil)
	}

	return &Engine{store: store, options: options, log: log}
}

// Ask answers a question on the generation path: plan an expression,
// execute it in the sandbox, compose the result into prose. The model
// never sees raw table rows, only the schema and the computed result.
func (e *Engine) Ask(ctx context.Context, question, tableName string) (*Answer, error) {
	start := time.Now()

	t, err := e.lookupTable(tableName)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Question: question, Mode: ModeGenerate}

	expr, err := e.options.Planner.Plan(ctx, question, t)
	if err != nil {
		var failure *planner.Failure
		if errors.As(err, &failure) {
			e.log.InfoWithFields("planning exhausted", []logger.Field{
				logger.F("reason", failure.Reason),
			})
			answer.State = StatePlanningFailed
			answer.FailureReason = failure.Reason
			answer.Text = couldNotAnswer(failure.Reason)
			answer.Elapsed = time.Since(start)
			return answer, nil
		}
		// provider failures past the retry budget propagate
		return nil, err
	}

	answer.State = StatePlanned
	answer.Expr = expr
	e.log.DebugWithFields("query planned", []logger.Field{
		logger.TableName(t.Name),
		logger.F("expr", expr.String()),
	})

	result, err := query.Execute(ctx, t, expr, e.options.Limits)
	if err != nil {
		switch query.KindOf(err) {
		case query.KindLimit, query.KindTimeout:
			// budget exhaustion on a validated expression is final
			return nil, err
		default:
			answer.State = StateExecutionFailed
			answer.FailureReason = err.Error()
			answer.Text = couldNotAnswer(err.Error())
			answer.Elapsed = time.Since(start)
			return answer, nil
		}
	}

	answer.State = StateExecuted
	e.log.DebugWithFields("query executed", []logger.Field{
		logger.Count(result.NumRows()),
	})

	text, err := e.options.Composer.FromResult(ctx, question, result)
	if err != nil {
		return nil, err
	}

	answer.State = StateComposed
	answer.Text = text
	answer.Elapsed = time.Since(start)
	return answer, nil
}

// AskRetrieve answers a question on the retrieval path: embed the
// question, retrieve the most similar rows and compose an answer from
// them. The index is built once and reused until the data or the
// embedder changes.
func (e *Engine) AskRetrieve(ctx context.Context, question, tableName string) (*Answer, error) {
	start := time.Now()

	t, err := e.lookupTable(tableName)
	if err != nil {
		return nil, err
	}

	ix, err := e.ensureIndex(ctx, t)
	if err != nil {
		return nil, err
	}

	retrieved, err := ix.Retrieve(ctx, question, e.options.TopK, *e.options.Threshold)
	if err != nil {
		return nil, err
	}

	e.log.DebugWithFields("documents retrieved", []logger.Field{
		logger.TableName(t.Name),
		logger.Count(len(retrieved)),
	})

	text, err := e.options.Composer.FromContext(ctx, question, retrieved)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Question:  question,
		Text:      text,
		Mode:      ModeRetrieve,
		State:     StateComposed,
		Retrieved: retrieved,
		Elapsed:   time.Since(start),
	}, nil
}

// Reindex rebuilds the embedding index for a table unconditionally
func (e *Engine) Reindex(ctx context.Context, tableName string) (int, error) {
	t, err := e.lookupTable(tableName)
	if err != nil {
		return 0, err
	}

	ix, err := e.buildIndex(ctx, t)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.index = ix
	e.mu.Unlock()

	return ix.Size(), nil
}

// Invalidate drops the cached index, forcing a rebuild on next use.
// Called when the underlying table data is reloaded.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.index = nil
	e.mu.Unlock()
}

// ensureIndex returns a current index for the table, building or
// rebuilding when the cached one is missing or stale
func (e *Engine) ensureIndex(ctx context.Context, t *table.Table) (*retriever.Index, error) {
	docs := chunker.Chunk(t)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.index != nil && !e.index.Stale(docs, e.options.Embedder) {
		return e.index, nil
	}

	// try the persisted index before re-embedding everything
	if e.index == nil && e.options.Persist != nil {
		loaded, err := retriever.Load(ctx, e.options.Persist, e.options.Embedder)
		if err == nil && !loaded.Stale(docs, e.options.Embedder) {
			e.log.Info("reusing persisted index (%d documents)", loaded.Size())
			e.index = loaded
			return loaded, nil
		}
		if err != nil && !errors.Is(err, vectorstore.ErrVersionMismatch) {
			e.log.Warn("persisted index unusable: %v", err)
		}
	}

	ix, err := e.buildIndexLocked(ctx, docs, t)
	if err != nil {
		return nil, err
	}

	e.index = ix
	return ix, nil
}

func (e *Engine) buildIndex(ctx context.Context, t *table.Table) (*retriever.Index, error) {
	return e.buildIndexLocked(ctx, chunker.Chunk(t), t)
}

func (e *Engine) buildIndexLocked(ctx context.Context, docs []chunker.Document, t *table.Table) (*retriever.Index, error) {
	start := time.Now()

	ix, err := retriever.Build(ctx, docs, e.options.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to build index for %s: %w", t.Name, err)
	}

	e.log.InfoWithFields("index built", []logger.Field{
		logger.TableName(t.Name),
		logger.Count(ix.Size()),
		logger.Duration(time.Since(start)),
	})

	if e.options.Persist != nil {
		if err := ix.Save(ctx, e.options.Persist); err != nil {
			e.log.Warn("failed to persist index: %v", err)
		}
	}

	return ix, nil
}

func (e *Engine) lookupTable(name string) (*table.Table, error) {
	if name == "" {
		t, ok := e.store.Default()
		if !ok {
			return nil, fmt.Errorf("no tables loaded")
		}
		return t, nil
	}

	t, ok := e.store.Get(name)
	if !ok {
		return nil, fmt.Errorf("no such table: %s", name)
	}
	return t, nil
}

// couldNotAnswer renders a graceful failure answer
func couldNotAnswer(reason string) string {
	return fmt.Sprintf("I couldn't answer that from the data: %s", reason)
}
