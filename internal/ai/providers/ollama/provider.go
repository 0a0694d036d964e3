package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/csvchat/csvchat/internal/ai"
)

// Provider implements the AI provider interface for Ollama
type Provider struct {
	config     *Config
	client     *http.Client
	baseURL    *url.URL
	healthy    bool
	healthMu   sync.RWMutex
	lastHealth time.Time
}

// New creates a new Ollama provider instance
func New(config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, ai.NewConfigurationError("ollama", "base_url", "invalid base URL: "+err.Error())
	}

	client := &http.Client{
		Timeout: config.Timeout,
	}

	return &Provider{
		config:  config,
		client:  client,
		baseURL: baseURL,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "ollama"
}

// Complete performs text completion
func (p *Provider) Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	startTime := time.Now()

	ollamaReq := p.buildGenerateRequest(req)
	ollamaReq.Stream = false

	resp, err := p.generate(ctx, ollamaReq)
	if err != nil {
		return nil, err
	}

	usage := &ai.TokenUsage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}

	return &ai.CompletionResponse{
		Content:      resp.Response,
		FinishReason: "stop",
		Usage:        usage,
		Model:        resp.Model,
		RequestID:    req.RequestID,
		CreatedAt:    startTime,
		Metadata: map[string]interface{}{
			"total_duration": resp.TotalDuration,
			"load_duration":  resp.LoadDuration,
			"eval_duration":  resp.EvalDuration,
		},
	}, nil
}

// CompleteStream performs streaming text completion
func (p *Provider) CompleteStream(ctx context.Context, req *ai.CompletionRequest) (<-chan ai.StreamChunk, error) {
	ollamaReq := p.buildGenerateRequest(req)
	ollamaReq.Stream = true

	return p.generateStream(ctx, ollamaReq)
}

func (p *Provider) buildGenerateRequest(req *ai.CompletionRequest) *GenerateRequest {
	model := req.Model
	if model == "" {
		model = p.config.DefaultModel
	}

	temperature := p.config.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	options := &Options{
		Temperature: temperature,
	}

	if req.MaxTokens > 0 {
		options.NumPredict = req.MaxTokens
	}

	return &GenerateRequest{
		Model:   model,
		Prompt:  req.Prompt,
		System:  req.SystemPrompt,
		Options: options,
	}
}

// Embed converts text to a vector via the Ollama embeddings API
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	endpoint := p.baseURL.JoinPath("/api/embeddings")

	embReq := &EmbeddingsRequest{
		Model:  p.config.EmbedModel,
		Prompt: text,
	}

	jsonData, err := json.Marshal(embReq)
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to marshal request", "ollama", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint.String(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to create request", "ollama", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ai.WrapCallError("ollama", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, p.decodeAPIError(resp, "embeddings request")
	}

	var result EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeResponseInvalid, "failed to decode embeddings response", "ollama", err)
	}

	if len(result.Embedding) == 0 {
		return nil, ai.NewProviderError(ai.ErrTypeResponseInvalid, "empty embedding returned", "ollama")
	}

	vector := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		vector[i] = float32(v)
	}

	return vector, nil
}

// Dimension returns the embedding vector dimensionality
func (p *Provider) Dimension() int {
	return p.config.EmbedDimensions
}

// Version identifies the embedding model revision
func (p *Provider) Version() string {
	return "ollama/" + p.config.EmbedModel
}

// CountTokens estimates token count for the given text
func (p *Provider) CountTokens(text string) (int, error) {
	// Rough estimate of 4 characters per token
	return len(text) / 4, nil
}

// MaxTokens returns the maximum context window size
func (p *Provider) MaxTokens() int {
	return p.config.MaxTokens
}

// SupportsStreaming indicates if the provider supports streaming
func (p *Provider) SupportsStreaming() bool {
	return true
}

// ValidateConfig validates the provider configuration
func (p *Provider) ValidateConfig() error {
	return p.config.Validate()
}

// Close cleans up provider resources
func (p *Provider) Close() error {
	return nil
}

// TruncateToFit truncates text to fit within token limits
func (p *Provider) TruncateToFit(text string, maxTokens int) (string, error) {
	estimatedTokens, err := p.CountTokens(text)
	if err != nil {
		return "", err
	}

	if estimatedTokens <= maxTokens {
		return text, nil
	}

	ratio := float64(maxTokens) / float64(estimatedTokens)
	targetLength := int(float64(len(text)) * ratio)

	if targetLength >= len(text) {
		return text, nil
	}

	return text[:targetLength], nil
}

// EstimateTokens provides a rough token count estimate
func (p *Provider) EstimateTokens(text string) int {
	tokens, _ := p.CountTokens(text)
	return tokens
}

// HealthCheck verifies provider connectivity and status
func (p *Provider) HealthCheck(ctx context.Context) error {
	endpoint := p.baseURL.JoinPath("/api/tags")

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), http.NoBody)
	if err != nil {
		return ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "failed to create health check request", "ollama", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.setHealthy(false)
		return ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "health check failed", "ollama", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		p.setHealthy(false)
		return ai.NewProviderError(ai.ErrTypeModelUnavailable, fmt.Sprintf("health check failed with status %d", resp.StatusCode), "ollama")
	}

	p.setHealthy(true)
	return nil
}

// IsHealthy returns current health status
func (p *Provider) IsHealthy() bool {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.healthy
}

// generate performs a single generation request
func (p *Provider) generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	endpoint := p.baseURL.JoinPath("/api/generate")

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to marshal request", "ollama", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint.String(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to create request", "ollama", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ai.WrapCallError("ollama", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, p.decodeAPIError(resp, "generate request")
	}

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeResponseInvalid, "failed to decode response", "ollama", err)
	}

	return &result, nil
}

// generateStream performs a streaming generation request
func (p *Provider) generateStream(ctx context.Context, req *GenerateRequest) (<-chan ai.StreamChunk, error) {
	endpoint := p.baseURL.JoinPath("/api/generate")

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to marshal request", "ollama", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint.String(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to create request", "ollama", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ai.WrapCallError("ollama", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := p.decodeAPIError(resp, "generate request")
		_ = resp.Body.Close()
		return nil, apiErr
	}

	ch := make(chan ai.StreamChunk)

	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			var genResp GenerateResponse
			if err := json.Unmarshal([]byte(line), &genResp); err != nil {
				select {
				case ch <- ai.StreamChunk{Error: ai.NewProviderErrorWithCause(ai.ErrTypeResponseInvalid, "failed to decode stream response", "ollama", err)}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case ch <- ai.StreamChunk{Content: genResp.Response, Done: genResp.Done}:
			case <-ctx.Done():
				return
			}

			if genResp.Done {
				break
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case ch <- ai.StreamChunk{Error: ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "stream scanning error", "ollama", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// decodeAPIError maps a non-200 response to a typed provider error
func (p *Provider) decodeAPIError(resp *http.Response, op string) error {
	body, _ := io.ReadAll(resp.Body)

	errType := ai.ErrTypeModelUnavailable
	if resp.StatusCode == http.StatusTooManyRequests {
		errType = ai.ErrTypeRateLimit
	}

	var errorResp ErrorResponse
	if json.Unmarshal(body, &errorResp) == nil && errorResp.Error != "" {
		return ai.NewProviderError(errType, errorResp.Error, "ollama")
	}
	return ai.NewProviderError(errType, fmt.Sprintf("%s failed with status %d", op, resp.StatusCode), "ollama")
}

// setHealthy updates the health status
func (p *Provider) setHealthy(healthy bool) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()
	p.healthy = healthy
	p.lastHealth = time.Now()
}
