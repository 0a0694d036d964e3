package config

import (
	"fmt"
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Version   string          `yaml:"version" json:"version"`
	Data      DataConfig      `yaml:"data" json:"data"`
	AI        AIConfig        `yaml:"ai" json:"ai"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Query     QueryConfig     `yaml:"query" json:"query"`
	Output    OutputConfig    `yaml:"output" json:"output"`
}

// DataConfig configures the CSV tables to load
type DataConfig struct {
	Files        []string `yaml:"files" json:"files"`                 // CSV files to load at startup
	DefaultTable string   `yaml:"default_table" json:"default_table"` // table addressed when none is named
	Watch        bool     `yaml:"watch" json:"watch"`                 // reload tables on file change
}

// AIConfig configures the language-model provider
type AIConfig struct {
	Provider   string        `yaml:"provider" json:"provider"`       // ollama|openai
	Model      string        `yaml:"model" json:"model"`             // completion model name
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`       // API endpoint URL
	APIKey     string        `yaml:"api_key" json:"api_key"`         // API key (env override recommended)
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`         // per-request timeout
	MaxRetries int           `yaml:"max_retries" json:"max_retries"` // planner retry budget
}

// EmbeddingConfig configures the embedding model
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" json:"provider"`     // ollama|openai|local
	Model      string `yaml:"model" json:"model"`           // embedding model name
	Dimensions int    `yaml:"dimensions" json:"dimensions"` // vector dimensionality
}

// IndexConfig configures the embedding index and retrieval
type IndexConfig struct {
	Path      string  `yaml:"path" json:"path"`           // SQLite index location ("" = memory only)
	TopK      int     `yaml:"top_k" json:"top_k"`         // documents retrieved per question
	Threshold float64 `yaml:"threshold" json:"threshold"` // minimum similarity score
}

// QueryConfig configures sandbox execution budgets
type QueryConfig struct {
	MaxRowsScanned int           `yaml:"max_rows_scanned" json:"max_rows_scanned"`
	MaxResultRows  int           `yaml:"max_result_rows" json:"max_result_rows"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig configures output formatting and display
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"` // text|json|markdown
	ColorMode     string `yaml:"color_mode" json:"color_mode"`         // auto|always|never
	Verbose       bool   `yaml:"verbose" json:"verbose"`
	ShowSources   bool   `yaml:"show_sources" json:"show_sources"` // print provenance with answers
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Data: DataConfig{
			Watch: false,
		},
		AI: AIConfig{
			Provider:   "ollama",
			Model:      "llama3.2",
			Endpoint:   "http://localhost:11434",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Index: IndexConfig{
			Path:      "~/.cache/csvchat/index.db",
			TopK:      4,
			Threshold: 0.1,
		},
		Query: QueryConfig{
			MaxRowsScanned: 1_000_000,
			MaxResultRows:  1_000,
			Timeout:        10 * time.Second,
		},
		Output: OutputConfig{
			DefaultFormat: "text",
			ColorMode:     "auto",
			Verbose:       false,
			ShowSources:   true,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateAIConfig(); err != nil {
		return err
	}
	if err := c.validateEmbeddingConfig(); err != nil {
		return err
	}
	if err := c.validateIndexConfig(); err != nil {
		return err
	}
	if err := c.validateQueryConfig(); err != nil {
		return err
	}
	return c.validateOutputConfig()
}

func (c *Config) validateAIConfig() error {
	if c.AI.Provider != "" {
		validProviders := map[string]bool{
			"ollama": true,
			"openai": true,
		}
		if !validProviders[c.AI.Provider] {
			return fmt.Errorf("invalid AI provider: %s (must be one of: ollama, openai)", c.AI.Provider)
		}
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.AI.Timeout < 0 {
		return fmt.Errorf("ai timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateEmbeddingConfig() error {
	if c.Embedding.Provider != "" {
		validProviders := map[string]bool{
			"ollama": true,
			"openai": true,
			"local":  true,
		}
		if !validProviders[c.Embedding.Provider] {
			return fmt.Errorf("invalid embedding provider: %s (must be one of: ollama, openai, local)", c.Embedding.Provider)
		}
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding dimensions must be greater than 0")
	}
	return nil
}

func (c *Config) validateIndexConfig() error {
	if c.Index.TopK < 1 {
		return fmt.Errorf("top_k must be greater than 0")
	}
	if c.Index.Threshold < -1 || c.Index.Threshold > 1 {
		return fmt.Errorf("threshold must be between -1 and 1")
	}
	return nil
}

func (c *Config) validateQueryConfig() error {
	if c.Query.MaxRowsScanned < 1 {
		return fmt.Errorf("max_rows_scanned must be greater than 0")
	}
	if c.Query.MaxResultRows < 1 {
		return fmt.Errorf("max_result_rows must be greater than 0")
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("query timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateOutputConfig() error {
	if c.Output.DefaultFormat != "" {
		validFormats := map[string]bool{
			"text":     true,
			"json":     true,
			"markdown": true,
		}
		if !validFormats[c.Output.DefaultFormat] {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json, markdown)", c.Output.DefaultFormat)
		}
	}
	if c.Output.ColorMode != "" {
		validColorModes := map[string]bool{
			"auto":   true,
			"always": true,
			"never":  true,
		}
		if !validColorModes[c.Output.ColorMode] {
			return fmt.Errorf("invalid color mode: %s (must be one of: auto, always, never)", c.Output.ColorMode)
		}
	}
	return nil
}
