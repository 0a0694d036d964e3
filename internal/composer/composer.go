// Package composer renders computed query results and retrieved rows into
// final natural-language answers.
package composer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/csvchat/csvchat/internal/ai"
	"github.com/csvchat/csvchat/internal/query"
	"github.com/csvchat/csvchat/internal/vectorstore"
)

// InsufficientDataAnswer is the fixed response when retrieval finds
// nothing relevant. The wording is part of the product contract.
const InsufficientDataAnswer = "I don't know — this information is not in the CSV."

const (
	defaultMaxTokens     = 500
	defaultContextTokens = 2048
	defaultTemperature   = 0.2
)

// Provider is the model surface the composer needs
type Provider interface {
	Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error)
	TruncateToFit(text string, maxTokens int) (string, error)
}

// Options configures a Composer
type Options struct {
	// MaxTokens bounds the answer length
	MaxTokens int

	// ContextTokens bounds the retrieved-row context fed to the model
	ContextTokens int

	// Temperature for answer generation. Nil selects the default; an
	// explicit zero asks the model for deterministic output.
	Temperature *float64
}

// Composer turns results and retrieved rows into answers
type Composer struct {
	provider Provider
	options  Options
}

// New creates a Composer with the given provider
func New(provider Provider, options Options) *Composer {
	if options.MaxTokens <= 0 {
		options.MaxTokens = defaultMaxTokens
	}
	if options.ContextTokens <= 0 {
		options.ContextTokens = defaultContextTokens
	}
	if options.Temperature == nil {
		temperature := float64(defaultTemperature)
		options.Temperature = &temperature
	}

	return &Composer{provider: provider, options: options}
}

// FromResult renders a computed query result as an answer. Scalar results
// are stringified directly without a model call; tables and columns are
// summarized by the model, which only sees the computed values.
func (c *Composer) FromResult(ctx context.Context, question string, result *query.Result) (string, error) {
	if result.IsScalar() {
		return result.Scalar.String(), nil
	}

	prompt := NewResultAnswerPattern(question, result).Build()

	resp, err := c.provider.Complete(ctx, &ai.CompletionRequest{
		Prompt:       prompt.String(),
		SystemPrompt: prompt.SystemPrompt,
		MaxTokens:    c.options.MaxTokens,
		Temperature:  c.options.Temperature,
		RequestID:    uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to compose answer: %w", err)
	}

	return resp.Content, nil
}

// FromContext answers a question from retrieved row documents. Empty
// retrieval returns the fixed insufficient-information answer without a
// model call. The concatenated rows are truncated to the context token
// budget before the model sees them.
func (c *Composer) FromContext(ctx context.Context, question string, retrieved []vectorstore.SearchResult) (string, error) {
	if len(retrieved) == 0 {
		return InsufficientDataAnswer, nil
	}

	rowContext := joinDocuments(retrieved)
	bounded, err := c.provider.TruncateToFit(rowContext, c.options.ContextTokens)
	if err != nil {
		return "", fmt.Errorf("failed to bound context: %w", err)
	}

	prompt := NewContextAnswerPattern(question, bounded).Build()

	resp, err := c.provider.Complete(ctx, &ai.CompletionRequest{
		Prompt:       prompt.String(),
		SystemPrompt: prompt.SystemPrompt,
		MaxTokens:    c.options.MaxTokens,
		Temperature:  c.options.Temperature,
		RequestID:    uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to compose answer: %w", err)
	}

	return resp.Content, nil
}
