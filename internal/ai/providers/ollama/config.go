package ollama

import (
	"time"

	"github.com/csvchat/csvchat/internal/ai"
)

// Config holds Ollama-specific configuration
type Config struct {
	// BaseURL is the Ollama API endpoint
	BaseURL string `json:"base_url"`

	// DefaultModel is the default model to use if none specified
	DefaultModel string `json:"default_model"`

	// EmbedModel is the model used for embeddings
	EmbedModel string `json:"embed_model"`

	// EmbedDimensions is the embedding vector dimensionality
	EmbedDimensions int `json:"embed_dimensions"`

	// Timeout for HTTP requests
	Timeout time.Duration `json:"timeout"`

	// MaxTokens is the maximum context window size
	MaxTokens int `json:"max_tokens"`

	// DefaultTemperature for requests
	DefaultTemperature float64 `json:"default_temperature"`
}

// DefaultConfig returns a default Ollama configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "http://localhost:11434",
		DefaultModel:       "llama3.2",
		EmbedModel:         "nomic-embed-text",
		EmbedDimensions:    768,
		Timeout:            30 * time.Second,
		MaxTokens:          4096,
		DefaultTemperature: 0.2,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ai.NewConfigurationError("ollama", "base_url", "base URL is required")
	}

	if c.DefaultModel == "" {
		return ai.NewConfigurationError("ollama", "default_model", "default model is required")
	}

	if c.Timeout <= 0 {
		return ai.NewConfigurationError("ollama", "timeout", "timeout must be positive")
	}

	if c.MaxTokens <= 0 {
		return ai.NewConfigurationError("ollama", "max_tokens", "max tokens must be positive")
	}

	if c.DefaultTemperature < 0 || c.DefaultTemperature > 1 {
		return ai.NewConfigurationError("ollama", "default_temperature", "temperature must be between 0 and 1")
	}

	return nil
}
