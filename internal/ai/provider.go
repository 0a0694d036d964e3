package ai

import (
	"context"
	"io"
)

// LLMProvider defines the interface for language model providers
type LLMProvider interface {
	// Name returns the provider name (e.g., "openai", "ollama")
	Name() string

	// Complete performs text completion
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream performs streaming text completion
	CompleteStream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error)

	// CountTokens estimates token count for the given text
	CountTokens(text string) (int, error)

	// MaxTokens returns the maximum context window size
	MaxTokens() int

	// SupportsStreaming indicates if the provider supports streaming
	SupportsStreaming() bool

	// ValidateConfig validates the provider configuration
	ValidateConfig() error

	// Close cleans up provider resources
	Close() error
}

// StreamChunk represents a streaming response chunk
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// ContextManager handles context window management
type ContextManager interface {
	// TruncateToFit truncates text to fit within token limits
	TruncateToFit(text string, maxTokens int) (string, error)

	// EstimateTokens provides a rough token count estimate
	EstimateTokens(text string) int
}

// HealthChecker provides health checking capabilities
type HealthChecker interface {
	// HealthCheck verifies provider connectivity and status
	HealthCheck(ctx context.Context) error

	// IsHealthy returns current health status
	IsHealthy() bool
}

// Provider combines all provider capabilities
type Provider interface {
	LLMProvider
	ContextManager
	HealthChecker
	io.Closer
}

// Embedder converts text into fixed-dimensional vectors. Vectors are
// comparable only within a single declared version: two embedders with
// different Version values produce incompatible vector spaces.
type Embedder interface {
	// Embed converts text to a vector of Dimension() elements
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed vector dimensionality
	Dimension() int

	// Version identifies the embedding model and revision
	Version() string
}
