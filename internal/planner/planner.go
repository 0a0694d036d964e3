// Package planner turns natural-language questions into validated query
// expressions using a language model. Model output is parsed and validated
// against the table schema before it is ever returned; an expression that
// fails validation is retried with the error fed back into the prompt.
package planner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yildizm/go-promptfmt"

	"github.com/csvchat/csvchat/internal/ai"
	"github.com/csvchat/csvchat/internal/query"
	"github.com/csvchat/csvchat/internal/table"
)

const (
	defaultMaxRetries  = 2
	defaultMaxTokens   = 500
	defaultTemperature = 0.0
)

// Failure reports an exhausted planning attempt. It carries the last raw
// model output so the caller can surface what was tried.
type Failure struct {
	// Reason is the final rejection, e.g. the last validation error
	Reason string

	// LastAttempt is the raw model output of the final attempt
	LastAttempt string
}

// Error implements the error interface
func (f *Failure) Error() string {
	return fmt.Sprintf("query planning failed: %s", f.Reason)
}

// Options configures a Planner
type Options struct {
	// MaxRetries is how many times a rejected plan is retried (default 2)
	MaxRetries int

	// MaxTokens bounds the model response length
	MaxTokens int

	// Temperature for planning requests; low by default so plans are stable
	Temperature float64
}

// Planner plans queries with a language model provider
type Planner struct {
	provider ai.LLMProvider
	options  Options
}

// New creates a Planner with the given provider
func New(provider ai.LLMProvider, options Options) *Planner {
	if options.MaxRetries <= 0 {
		options.MaxRetries = defaultMaxRetries
	}
	if options.MaxTokens <= 0 {
		options.MaxTokens = defaultMaxTokens
	}
	if options.Temperature < 0 {
		options.Temperature = defaultTemperature
	}

	return &Planner{provider: provider, options: options}
}

// Plan translates a question into a validated expression over the table
// schema. Returns *Failure after the retry budget is exhausted on
// unparseable or invalid model output; provider errors are returned as-is
// once their own retry allowance is used up.
func (p *Planner) Plan(ctx context.Context, question string, t *table.Table) (*query.Expression, error) {
	pattern := NewQueryPlanPattern(question, t)

	var lastReason, lastAttempt string

	for attempt := 0; attempt <= p.options.MaxRetries; attempt++ {
		if lastReason != "" {
			pattern.WithPreviousError(lastReason)
		}
		prompt := pattern.Build()

		req := &ai.CompletionRequest{
			Prompt:       prompt.String(),
			SystemPrompt: prompt.SystemPrompt,
			MaxTokens:    p.options.MaxTokens,
			Temperature:  &p.options.Temperature,
			RequestID:    uuid.NewString(),
		}

		resp, err := p.provider.Complete(ctx, req)
		if err != nil {
			if ai.IsRetryableError(err) && attempt < p.options.MaxRetries {
				continue
			}
			return nil, err
		}

		lastAttempt = resp.Content

		var expr query.Expression
		parseResult := promptfmt.NewResponse(resp.Content).TryParseJSON(&expr)
		if !parseResult.Success {
			lastReason = "response was not a valid JSON query object"
			continue
		}

		if err := query.Validate(&expr, t.Columns); err != nil {
			lastReason = err.Error()
			continue
		}

		return &expr, nil
	}

	return nil, &Failure{Reason: lastReason, LastAttempt: lastAttempt}
}
