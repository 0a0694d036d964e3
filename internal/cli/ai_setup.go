package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/csvchat/csvchat/internal/ai"
	"github.com/csvchat/csvchat/internal/ai/providers/ollama"
	"github.com/csvchat/csvchat/internal/ai/providers/openai"
	"github.com/csvchat/csvchat/internal/chunker"
	"github.com/csvchat/csvchat/internal/composer"
	"github.com/csvchat/csvchat/internal/config"
	"github.com/csvchat/csvchat/internal/logger"
	"github.com/csvchat/csvchat/internal/planner"
	"github.com/csvchat/csvchat/internal/qa"
	"github.com/csvchat/csvchat/internal/query"
	"github.com/csvchat/csvchat/internal/table"
	"github.com/csvchat/csvchat/internal/vectorstore"
)

// session bundles everything a command needs to answer questions
type session struct {
	store   *table.Store
	engine  *qa.Engine
	persist *vectorstore.SQLiteStore
}

// Close releases session resources
func (s *session) Close() error {
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}

// newSession loads the configured tables and wires the QA engine
func newSession() (*session, error) {
	cfg := GetGlobalConfig()

	store, err := openTableStore(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := createAIProvider(&cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}

	embedder, err := createEmbedder(cfg, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	persist, err := openIndexStore(cfg)
	if err != nil {
		return nil, err
	}

	threshold := float32(cfg.Index.Threshold)

	engine := qa.NewEngine(store, qa.Options{
		Planner: planner.New(provider, planner.Options{
			MaxRetries: cfg.AI.MaxRetries,
		}),
		Composer: composer.New(provider, composer.Options{}),
		Embedder: embedder,
		Limits: query.Limits{
			MaxRowsScanned:   cfg.Query.MaxRowsScanned,
			MaxResultRows:    cfg.Query.MaxResultRows,
			MaxExecutionTime: cfg.Query.Timeout,
		},
		TopK:      cfg.Index.TopK,
		Threshold: &threshold,
		Persist:   persist,
		Logger:    logger.NewWithCallback("qa", isVerbose),
	})

	return &session{store: store, engine: engine, persist: persist}, nil
}

// openTableStore loads every configured CSV file into a store
func openTableStore(cfg *config.Config) (*table.Store, error) {
	if len(cfg.Data.Files) == 0 {
		return nil, fmt.Errorf("no CSV files configured: pass --file or set data.files")
	}

	log := logger.NewWithCallback("table", isVerbose)
	store := table.NewStore()

	for _, path := range cfg.Data.Files {
		t, rowErrors, err := store.Load(config.ExpandPath(path))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		for _, re := range rowErrors {
			log.Warn("%s line %d: %s", t.Name, re.Line, re.Reason)
		}
		log.InfoWithFields("table loaded", []logger.Field{
			logger.TableName(t.Name),
			logger.Count(len(t.Rows)),
		})
	}

	return store, nil
}

// createAIProvider creates a language-model provider from configuration
func createAIProvider(aiConfig *config.AIConfig) (ai.Provider, error) {
	switch strings.ToLower(aiConfig.Provider) {
	case "openai":
		return createOpenAIProvider(aiConfig)
	case "ollama":
		return createOllamaProvider(aiConfig)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", aiConfig.Provider)
	}
}

func createOpenAIProvider(aiConfig *config.AIConfig) (ai.Provider, error) {
	openaiConfig := openai.DefaultConfig()
	openaiConfig.APIKey = aiConfig.APIKey
	if aiConfig.Endpoint != "" {
		openaiConfig.BaseURL = aiConfig.Endpoint
	}
	if aiConfig.Model != "" {
		openaiConfig.DefaultModel = aiConfig.Model
	}
	if aiConfig.Timeout > 0 {
		openaiConfig.Timeout = aiConfig.Timeout
	}
	return openai.New(openaiConfig)
}

func createOllamaProvider(aiConfig *config.AIConfig) (ai.Provider, error) {
	ollamaConfig := ollama.DefaultConfig()
	if aiConfig.Endpoint != "" {
		ollamaConfig.BaseURL = aiConfig.Endpoint
	}
	if aiConfig.Model != "" {
		ollamaConfig.DefaultModel = aiConfig.Model
	}
	if aiConfig.Timeout > 0 {
		ollamaConfig.Timeout = aiConfig.Timeout
	}
	return ollama.New(ollamaConfig)
}

// createEmbedder creates the embedding backend. The "local" provider is
// a TF-IDF vectorizer fitted on the loaded rows and needs no network.
func createEmbedder(cfg *config.Config, store *table.Store) (ai.Embedder, error) {
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "local":
		return createLocalEmbedder(cfg, store)

	case "ollama":
		ollamaConfig := ollama.DefaultConfig()
		if cfg.AI.Endpoint != "" && strings.EqualFold(cfg.AI.Provider, "ollama") {
			ollamaConfig.BaseURL = cfg.AI.Endpoint
		}
		if cfg.Embedding.Model != "" {
			ollamaConfig.EmbedModel = cfg.Embedding.Model
		}
		if cfg.Embedding.Dimensions > 0 {
			ollamaConfig.EmbedDimensions = cfg.Embedding.Dimensions
		}
		return ollama.New(ollamaConfig)

	case "openai":
		openaiConfig := openai.DefaultConfig()
		openaiConfig.APIKey = cfg.AI.APIKey
		if cfg.AI.Endpoint != "" && strings.EqualFold(cfg.AI.Provider, "openai") {
			openaiConfig.BaseURL = cfg.AI.Endpoint
		}
		if cfg.Embedding.Model != "" {
			openaiConfig.EmbedModel = cfg.Embedding.Model
		}
		if cfg.Embedding.Dimensions > 0 {
			openaiConfig.EmbedDimensions = cfg.Embedding.Dimensions
		}
		return openai.New(openaiConfig)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func createLocalEmbedder(cfg *config.Config, store *table.Store) (ai.Embedder, error) {
	var corpus []string
	for _, t := range store.Tables() {
		for _, doc := range chunker.Chunk(t) {
			corpus = append(corpus, doc.Text)
		}
	}

	embedder := vectorstore.NewTFIDFEmbedder(cfg.Embedding.Dimensions)
	if err := embedder.Fit(corpus); err != nil {
		return nil, err
	}
	return embedder, nil
}

// openIndexStore opens the SQLite index when a path is configured.
// An empty path keeps the index in memory only.
func openIndexStore(cfg *config.Config) (*vectorstore.SQLiteStore, error) {
	if cfg.Index.Path == "" {
		return nil, nil
	}

	path := config.ExpandPath(cfg.Index.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	store, err := vectorstore.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}
	return store, nil
}
