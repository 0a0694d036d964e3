package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/csvchat/csvchat/internal/ai"
)

func testConfig(baseURL string) *Config {
	config := DefaultConfig()
	config.APIKey = "test-key"
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return config
}

func TestProvider_New(t *testing.T) {
	provider, err := New(testConfig(""))
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if provider.Name() != "openai" {
		t.Errorf("Expected provider name 'openai', got '%s'", provider.Name())
	}
}

func TestProvider_NewRequiresAPIKey(t *testing.T) {
	config := DefaultConfig()
	if _, err := New(config); err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected path '/v1/chat/completions', got '%s'", r.URL.Path)
		}

		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected Authorization header: %q", auth)
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		if len(req.Messages) == 0 {
			t.Error("Expected messages to be set")
		}

		resp := ChatCompletionResponse{
			ID:    "chatcmpl-test",
			Model: req.Model,
			Choices: []ChatCompletionChoice{
				{
					Message:      ChatMessage{Role: "assistant", Content: "Lyon has 513000 inhabitants."},
					FinishReason: "stop",
				},
			},
			Usage: ChatCompletionUsage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), &ai.CompletionRequest{
		Prompt:    "what is the population of Lyon?",
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}

	if resp.Content != "Lyon has 513000 inhabitants." {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("Expected total tokens 20, got %d", resp.Usage.TotalTokens)
	}
}

func TestProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("Expected path '/v1/embeddings', got '%s'", r.URL.Path)
		}

		var req EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(EmbeddingResponse{
			Data: []EmbeddingData{{Embedding: []float32{0.5, 0.25}}},
		})
	}))
	defer server.Close()

	provider, err := New(testConfig(server.URL))
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	vector, err := provider.Embed(context.Background(), "city: Lyon; pop: 513000")
	if err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}

	if len(vector) != 2 || vector[0] != 0.5 {
		t.Errorf("Unexpected vector: %v", vector)
	}
}

func TestProvider_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantType   ai.ErrorType
	}{
		{"rate limited", http.StatusTooManyRequests, ai.ErrTypeRateLimit},
		{"bad key", http.StatusUnauthorized, ai.ErrTypeConfiguration},
		{"outage", http.StatusInternalServerError, ai.ErrTypeModelUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_ = json.NewEncoder(w).Encode(ErrorResponse{
					Error: ErrorDetail{Message: "nope"},
				})
			}))
			defer server.Close()

			provider, err := New(testConfig(server.URL))
			if err != nil {
				t.Fatalf("Failed to create provider: %v", err)
			}

			_, err = provider.Complete(context.Background(), &ai.CompletionRequest{Prompt: "hi"})
			if err == nil {
				t.Fatal("Expected error")
			}

			var pe *ai.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected *ai.ProviderError, got %T", err)
			}
			if pe.Type != tt.wantType {
				t.Errorf("error type = %s, want %s", pe.Type, tt.wantType)
			}
		})
	}
}
