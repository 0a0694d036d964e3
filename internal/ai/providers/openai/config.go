package openai

import (
	"fmt"
	"net/url"
	"time"

	"github.com/csvchat/csvchat/internal/ai"
)

const (
	DefaultBaseURL         = "https://api.openai.com"
	DefaultModel           = "gpt-4o-mini"
	DefaultEmbedModel      = "text-embedding-3-small"
	DefaultEmbedDimensions = 1536
	DefaultMaxTokens       = 4096
	DefaultTemperature     = 0.2
	DefaultTimeout         = 30 * time.Second
)

type Config struct {
	APIKey             string        `json:"api_key"`
	BaseURL            string        `json:"base_url"`
	DefaultModel       string        `json:"default_model"`
	EmbedModel         string        `json:"embed_model"`
	EmbedDimensions    int           `json:"embed_dimensions"`
	MaxTokens          int           `json:"max_tokens"`
	DefaultTemperature float64       `json:"default_temperature"`
	Timeout            time.Duration `json:"timeout"`
	OrganizationID     string        `json:"organization_id,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:            DefaultBaseURL,
		DefaultModel:       DefaultModel,
		EmbedModel:         DefaultEmbedModel,
		EmbedDimensions:    DefaultEmbedDimensions,
		MaxTokens:          DefaultMaxTokens,
		DefaultTemperature: DefaultTemperature,
		Timeout:            DefaultTimeout,
	}
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ai.NewConfigurationError("openai", "api_key", "API key is required")
	}

	if c.BaseURL == "" {
		return ai.NewConfigurationError("openai", "base_url", "base URL is required")
	}

	if _, err := url.Parse(c.BaseURL); err != nil {
		return ai.NewConfigurationError("openai", "base_url", fmt.Sprintf("invalid base URL: %v", err))
	}

	if c.DefaultModel == "" {
		return ai.NewConfigurationError("openai", "default_model", "default model is required")
	}

	if c.MaxTokens <= 0 {
		return ai.NewConfigurationError("openai", "max_tokens", "max tokens must be positive")
	}

	if c.DefaultTemperature < 0 || c.DefaultTemperature > 2 {
		return ai.NewConfigurationError("openai", "default_temperature", "temperature must be between 0 and 2")
	}

	if c.EmbedDimensions <= 0 {
		return ai.NewConfigurationError("openai", "embed_dimensions", "embed dimensions must be positive")
	}

	return nil
}
