package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/csvchat/csvchat/internal/ai"
)

type Provider struct {
	config  *Config
	client  *http.Client
	baseURL *url.URL
	healthy bool
	mu      sync.RWMutex
}

func New(config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, ai.NewConfigurationError("openai", "base_url", fmt.Sprintf("invalid base URL: %v", err))
	}

	client := &http.Client{
		Timeout: config.Timeout,
	}

	return &Provider{
		config:  config,
		client:  client,
		baseURL: baseURL,
		healthy: true,
	}, nil
}

func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) Complete(ctx context.Context, req *ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if req == nil {
		return nil, ai.NewValidationError("request", "nil", "completion request is required")
	}

	chatReq := p.buildChatRequest(req)
	chatReq.Stream = false

	response, err := p.sendChatRequest(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	return response.ToAIResponse(req.RequestID), nil
}

func (p *Provider) CompleteStream(ctx context.Context, req *ai.CompletionRequest) (<-chan ai.StreamChunk, error) {
	if req == nil {
		return nil, ai.NewValidationError("request", "nil", "completion request is required")
	}

	chatReq := p.buildChatRequest(req)
	chatReq.Stream = true

	ch := make(chan ai.StreamChunk)

	go func() {
		defer close(ch)

		if err := p.sendChatRequestStream(ctx, chatReq, ch); err != nil {
			select {
			case ch <- ai.StreamChunk{Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// Embed converts text to a vector via the embeddings API
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	embReq := &EmbeddingRequest{
		Model: p.config.EmbedModel,
		Input: text,
	}

	body, err := p.sendRequest(ctx, "/v1/embeddings", embReq)
	if err != nil {
		return nil, err
	}

	var result EmbeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeResponseInvalid, "failed to decode embeddings response", "openai", err)
	}

	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, ai.NewProviderError(ai.ErrTypeResponseInvalid, "empty embedding returned", "openai")
	}

	return result.Data[0].Embedding, nil
}

// Dimension returns the embedding vector dimensionality
func (p *Provider) Dimension() int {
	return p.config.EmbedDimensions
}

// Version identifies the embedding model revision
func (p *Provider) Version() string {
	return "openai/" + p.config.EmbedModel
}

func (p *Provider) CountTokens(text string) (int, error) {
	return p.estimateTokens(text), nil
}

func (p *Provider) MaxTokens() int {
	return p.config.MaxTokens
}

func (p *Provider) SupportsStreaming() bool {
	return true
}

func (p *Provider) ValidateConfig() error {
	return p.config.Validate()
}

func (p *Provider) Close() error {
	return nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	endpoint := p.baseURL.JoinPath("/v1/models")

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), http.NoBody)
	if err != nil {
		p.setHealthy(false)
		return ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "failed to create health check request", "openai", err)
	}

	p.setAuthHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		p.setHealthy(false)
		return ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "health check request failed", "openai", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		p.setHealthy(false)
		return ai.NewProviderError(ai.ErrTypeModelUnavailable, fmt.Sprintf("health check failed with status %d", resp.StatusCode), "openai")
	}

	p.setHealthy(true)
	return nil
}

func (p *Provider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
}

func (p *Provider) TruncateToFit(text string, maxTokens int) (string, error) {
	estimated := p.estimateTokens(text)
	if estimated <= maxTokens {
		return text, nil
	}

	ratio := float64(maxTokens) / float64(estimated)
	targetLength := int(float64(len(text)) * ratio)
	if targetLength >= len(text) {
		return text, nil
	}

	return text[:targetLength], nil
}

func (p *Provider) EstimateTokens(text string) int {
	return p.estimateTokens(text)
}

func (p *Provider) estimateTokens(text string) int {
	// Rough estimate of 4 characters per token
	return len(text) / 4
}

func (p *Provider) buildChatRequest(req *ai.CompletionRequest) *ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.config.DefaultModel
	}

	temperature := p.config.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	var messages []ChatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	chatReq := &ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}

	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	return chatReq
}

func (p *Provider) sendChatRequest(ctx context.Context, chatReq *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := p.sendRequest(ctx, "/v1/chat/completions", chatReq)
	if err != nil {
		return nil, err
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeResponseInvalid, "failed to decode response", "openai", err)
	}

	if len(result.Choices) == 0 {
		return nil, ai.NewProviderError(ai.ErrTypeResponseInvalid, "no completion choices returned", "openai")
	}

	return &result, nil
}

func (p *Provider) sendRequest(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	endpoint := p.baseURL.JoinPath(path)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to marshal request", "openai", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint.String(), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to create request", "openai", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	p.setAuthHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ai.WrapCallError("openai", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "failed to read response body", "openai", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.decodeAPIError(resp.StatusCode, body)
	}

	return body, nil
}

func (p *Provider) sendChatRequestStream(ctx context.Context, chatReq *ChatCompletionRequest, ch chan<- ai.StreamChunk) error {
	endpoint := p.baseURL.JoinPath("/v1/chat/completions")

	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		return ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to marshal request", "openai", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint.String(), bytes.NewBuffer(jsonData))
	if err != nil {
		return ai.NewProviderErrorWithCause(ai.ErrTypeInternal, "failed to create request", "openai", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	p.setAuthHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ai.WrapCallError("openai", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return p.decodeAPIError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			select {
			case ch <- ai.StreamChunk{Done: true}:
			case <-ctx.Done():
			}
			return nil
		}

		var streamResp ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			continue
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		chunk := ai.StreamChunk{
			Content: streamResp.Choices[0].Delta.Content,
			Done:    streamResp.Choices[0].FinishReason != nil,
		}

		select {
		case ch <- chunk:
		case <-ctx.Done():
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return ai.NewProviderErrorWithCause(ai.ErrTypeNetwork, "stream scanning error", "openai", err)
	}

	return nil
}

// decodeAPIError maps a non-200 response to a typed provider error
func (p *Provider) decodeAPIError(statusCode int, body []byte) error {
	errType := ai.ErrTypeModelUnavailable
	switch statusCode {
	case http.StatusTooManyRequests:
		errType = ai.ErrTypeRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = ai.ErrTypeConfiguration
	}

	var errorResp ErrorResponse
	if json.Unmarshal(body, &errorResp) == nil && errorResp.Error.Message != "" {
		pe := ai.NewProviderError(errType, errorResp.Error.Message, "openai")
		pe.StatusCode = statusCode
		return pe
	}

	pe := ai.NewProviderError(errType, fmt.Sprintf("request failed with status %d", statusCode), "openai")
	pe.StatusCode = statusCode
	return pe
}

func (p *Provider) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.OrganizationID != "" {
		req.Header.Set("OpenAI-Organization", p.config.OrganizationID)
	}
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}
