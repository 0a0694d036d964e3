package ai

import (
	"time"
)

// CompletionRequest represents a request for text completion
type CompletionRequest struct {
	// Prompt is the input text for completion
	Prompt string `json:"prompt"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 1.0). Nil lets the
	// provider fall back to its configured default.
	Temperature *float64 `json:"temperature,omitempty"`

	// SystemPrompt provides system-level instructions
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model specifies which model to use (provider-specific)
	Model string `json:"model,omitempty"`

	// Stream indicates if streaming response is requested
	Stream bool `json:"stream,omitempty"`

	// Metadata for request tracking
	RequestID string            `json:"request_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CompletionResponse represents the response from a completion request
type CompletionResponse struct {
	// Content is the generated text
	Content string `json:"content"`

	// FinishReason indicates why the completion finished
	FinishReason string `json:"finish_reason"`

	// Usage contains token usage information
	Usage *TokenUsage `json:"usage"`

	// Model indicates which model was used
	Model string `json:"model"`

	// RequestID matches the original request
	RequestID string `json:"request_id,omitempty"`

	// CreatedAt timestamp
	CreatedAt time.Time `json:"created_at"`

	// Provider-specific metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens
	TotalTokens int `json:"total_tokens"`
}

// ProviderConfig contains configuration for a provider
type ProviderConfig struct {
	// Name is the provider identifier
	Name string `json:"name"`

	// Type is the provider type (openai, ollama, etc.)
	Type string `json:"type"`

	// APIKey for authentication
	APIKey string `json:"api_key,omitempty"`

	// BaseURL for the API endpoint
	BaseURL string `json:"base_url,omitempty"`

	// DefaultModel is the default model to use
	DefaultModel string `json:"default_model,omitempty"`

	// EmbedModel is the embedding model to use
	EmbedModel string `json:"embed_model,omitempty"`

	// EmbedDimensions is the embedding vector dimensionality
	EmbedDimensions int `json:"embed_dimensions,omitempty"`

	// MaxTokens is the maximum context window
	MaxTokens int `json:"max_tokens,omitempty"`

	// DefaultTemperature for requests
	DefaultTemperature float64 `json:"default_temperature,omitempty"`

	// Timeout for requests
	Timeout time.Duration `json:"timeout,omitempty"`

	// Custom headers for requests
	Headers map[string]string `json:"headers,omitempty"`

	// Provider-specific options
	Options map[string]interface{} `json:"options,omitempty"`
}
