package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPaths defines the config file search paths in priority order
var ConfigPaths = []string{
	"./.csvchat.yaml",               // Project-specific config (highest priority)
	"~/.config/csvchat/config.yaml", // User config
	"/etc/csvchat/config.yaml",      // System config (lowest priority)
}

// Loader handles configuration loading with priority merging
type Loader struct {
	configPaths []string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{
		configPaths: ConfigPaths,
	}
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Command line flags (handled by caller)
// 2. Environment variables
// 3. ./.csvchat.yaml
// 4. ~/.config/csvchat/config.yaml
// 5. /etc/csvchat/config.yaml
// 6. Built-in defaults
func (l *Loader) LoadConfig(customPath string) (*Config, error) {
	config := DefaultConfig()

	if customPath != "" {
		if err := validateConfigPath(customPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := l.loadFromFile(config, customPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", customPath, err)
		}
	} else {
		// load lowest priority first so later files overwrite
		paths := make([]string, len(l.configPaths))
		copy(paths, l.configPaths)
		for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
			paths[i], paths[j] = paths[j], paths[i]
		}

		for _, path := range paths {
			expandedPath := expandPath(path)
			if fileExists(expandedPath) {
				if err := l.loadFromFile(config, expandedPath); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", expandedPath, err)
				}
			}
		}
	}

	if err := l.applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile merges a YAML file into the config
func (l *Loader) loadFromFile(config *Config, path string) error {
	// #nosec G304 - path is validated by validateConfigPath() before reaching here
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	mergeConfigs(config, &fileConfig)
	return nil
}

// applyEnvOverrides applies CSVCHAT_* environment variable overrides
func (l *Loader) applyEnvOverrides(config *Config) error {
	envMappings := map[string]func(string) error{
		// AI Config
		"CSVCHAT_AI_PROVIDER":    func(v string) error { config.AI.Provider = v; return nil },
		"CSVCHAT_AI_MODEL":       func(v string) error { config.AI.Model = v; return nil },
		"CSVCHAT_AI_ENDPOINT":    func(v string) error { config.AI.Endpoint = v; return nil },
		"CSVCHAT_AI_API_KEY":     func(v string) error { config.AI.APIKey = v; return nil },
		"CSVCHAT_AI_TIMEOUT":     func(v string) error { return parseDuration(v, &config.AI.Timeout) },
		"CSVCHAT_AI_MAX_RETRIES": func(v string) error { return parseInt(v, &config.AI.MaxRetries) },

		// Embedding Config
		"CSVCHAT_EMBEDDING_PROVIDER":   func(v string) error { config.Embedding.Provider = v; return nil },
		"CSVCHAT_EMBEDDING_MODEL":      func(v string) error { config.Embedding.Model = v; return nil },
		"CSVCHAT_EMBEDDING_DIMENSIONS": func(v string) error { return parseInt(v, &config.Embedding.Dimensions) },

		// Index Config
		"CSVCHAT_INDEX_PATH":      func(v string) error { config.Index.Path = v; return nil },
		"CSVCHAT_INDEX_TOP_K":     func(v string) error { return parseInt(v, &config.Index.TopK) },
		"CSVCHAT_INDEX_THRESHOLD": func(v string) error { return parseFloat(v, &config.Index.Threshold) },

		// Query Config
		"CSVCHAT_QUERY_MAX_ROWS_SCANNED": func(v string) error { return parseInt(v, &config.Query.MaxRowsScanned) },
		"CSVCHAT_QUERY_MAX_RESULT_ROWS":  func(v string) error { return parseInt(v, &config.Query.MaxResultRows) },
		"CSVCHAT_QUERY_TIMEOUT":          func(v string) error { return parseDuration(v, &config.Query.Timeout) },

		// Output Config
		"CSVCHAT_OUTPUT_DEFAULT_FORMAT": func(v string) error { config.Output.DefaultFormat = v; return nil },
		"CSVCHAT_OUTPUT_COLOR_MODE":     func(v string) error { config.Output.ColorMode = v; return nil },
		"CSVCHAT_OUTPUT_VERBOSE":        func(v string) error { return parseBool(v, &config.Output.Verbose) },
		"CSVCHAT_OUTPUT_SHOW_SOURCES":   func(v string) error { return parseBool(v, &config.Output.ShowSources) },

		// Data Config
		"CSVCHAT_DATA_DEFAULT_TABLE": func(v string) error { config.Data.DefaultTable = v; return nil },
		"CSVCHAT_DATA_WATCH":         func(v string) error { return parseBool(v, &config.Data.Watch) },
	}

	for envVar, setter := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}

	// data files are a comma-separated list
	if files := os.Getenv("CSVCHAT_DATA_FILES"); files != "" {
		config.Data.Files = strings.Split(files, ",")
		for i, f := range config.Data.Files {
			config.Data.Files[i] = strings.TrimSpace(f)
		}
	}

	return nil
}

// GetConfigPaths returns the configuration file paths that will be searched
func GetConfigPaths() []string {
	paths := make([]string, 0, len(ConfigPaths))
	for _, path := range ConfigPaths {
		paths = append(paths, expandPath(path))
	}
	return paths
}

// FindConfigFile finds the first existing config file in the search paths
func FindConfigFile() (string, bool) {
	for _, path := range ConfigPaths {
		expandedPath := expandPath(path)
		if fileExists(expandedPath) {
			return expandedPath, true
		}
	}
	return "", false
}

// validateConfigPath validates that a config path is safe to read
func validateConfigPath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension")
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if strings.HasPrefix(absPath, "/proc/") || strings.HasPrefix(absPath, "/sys/") {
		return fmt.Errorf("access to system files not allowed")
	}

	return nil
}

// ExpandPath expands ~ to the home directory
func ExpandPath(path string) string {
	return expandPath(path)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mergeConfigs merges source config into destination config.
// Only non-zero values from source overwrite destination.
func mergeConfigs(dst, src *Config) {
	if src.Version != "" {
		dst.Version = src.Version
	}

	mergeDataConfig(&dst.Data, &src.Data)
	mergeAIConfig(&dst.AI, &src.AI)
	mergeEmbeddingConfig(&dst.Embedding, &src.Embedding)
	mergeIndexConfig(&dst.Index, &src.Index)
	mergeQueryConfig(&dst.Query, &src.Query)
	mergeOutputConfig(&dst.Output, &src.Output)
}

func mergeDataConfig(dst, src *DataConfig) {
	if len(src.Files) > 0 {
		dst.Files = src.Files
	}
	if src.DefaultTable != "" {
		dst.DefaultTable = src.DefaultTable
	}
	if src.Watch {
		dst.Watch = src.Watch
	}
}

func mergeAIConfig(dst, src *AIConfig) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Endpoint != "" {
		dst.Endpoint = src.Endpoint
	}
	if src.APIKey != "" {
		dst.APIKey = src.APIKey
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.MaxRetries != 0 {
		dst.MaxRetries = src.MaxRetries
	}
}

func mergeEmbeddingConfig(dst, src *EmbeddingConfig) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Dimensions != 0 {
		dst.Dimensions = src.Dimensions
	}
}

func mergeIndexConfig(dst, src *IndexConfig) {
	if src.Path != "" {
		dst.Path = src.Path
	}
	if src.TopK != 0 {
		dst.TopK = src.TopK
	}
	if src.Threshold != 0 {
		dst.Threshold = src.Threshold
	}
}

func mergeQueryConfig(dst, src *QueryConfig) {
	if src.MaxRowsScanned != 0 {
		dst.MaxRowsScanned = src.MaxRowsScanned
	}
	if src.MaxResultRows != 0 {
		dst.MaxResultRows = src.MaxResultRows
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
}

func mergeOutputConfig(dst, src *OutputConfig) {
	if src.DefaultFormat != "" {
		dst.DefaultFormat = src.DefaultFormat
	}
	if src.ColorMode != "" {
		dst.ColorMode = src.ColorMode
	}
	if src.Verbose {
		dst.Verbose = src.Verbose
	}
	if src.ShowSources {
		dst.ShowSources = src.ShowSources
	}
}

// Type conversion helpers

func parseInt(s string, dst *int) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseBool(s string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseFloat(s string, dst *float64) error {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
