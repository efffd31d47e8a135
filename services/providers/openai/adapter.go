package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maomaocong/audio-scene-api/services/providers"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultEmbedModel = "text-embedding-3-small"
)

// Adapter implements the Provider interface against any service
// speaking the OpenAI chat completion wire format. The name
// distinguishes instances pointed at different endpoints, such as
// OpenRouter.
type Adapter struct {
	name       string
	config     providers.Config
	embedModel string
	httpClient *http.Client
	// streamClient has no client-level timeout; a streamed response
	// lives as long as its request context.
	streamClient *http.Client
	limiter      *rate.Limiter
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithEmbedModel overrides the embedding model. An empty value keeps
// the default.
func WithEmbedModel(model string) Option {
	return func(a *Adapter) {
		if model != "" {
			a.embedModel = model
		}
	}
}

// NewAdapter creates an adapter for an OpenAI-compatible endpoint
func NewAdapter(name string, config providers.Config, opts ...Option) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	a := &Adapter{
		name:         name,
		config:       config,
		embedModel:   defaultEmbedModel,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		limiter:      rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return a.name
}

// ChatCompletion performs a chat completion request
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	start := time.Now()

	body, err := json.Marshal(a.buildWireRequest(req, false))
	if err != nil {
		return nil, providers.NewProviderError(a.name, "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	respBody, status, err := a.doWithRetry(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, a.handleErrorResponse(status, respBody)
	}

	var wire wireChatResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, providers.NewProviderError(a.name, "UNMARSHAL_ERROR", "failed to unmarshal response", status, false, err)
	}
	if len(wire.Choices) == 0 {
		return nil, providers.NewProviderError(a.name, "EMPTY_RESPONSE", "no choices returned", status, false, nil)
	}

	return &providers.ChatResponse{
		Content:  wire.Choices[0].Message.Content,
		Model:    wire.Model,
		Provider: a.name,
		Usage: providers.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
		Latency: time.Since(start),
	}, nil
}

// ChatStream performs a streaming chat completion. Increments are
// delivered in arrival order; cancelling the context tears down the
// connection mid-stream.
func (a *Adapter) ChatStream(ctx context.Context, req *providers.ChatRequest, onChunk func(content string) error) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(a.buildWireRequest(req, true))
	if err != nil {
		return providers.NewProviderError(a.name, "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := a.newRequest(ctx, "/chat/completions", body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.streamClient.Do(httpReq)
	if err != nil {
		return providers.NewProviderError(a.name, "HTTP_ERROR", "stream request failed", 0, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return a.handleErrorResponse(resp.StatusCode, respBody)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}

		var chunk wireStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := onChunk(content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return providers.NewProviderError(a.name, "STREAM_ERROR", "stream read failed", 0, true, err)
	}
	return nil
}

// EmbedTexts embeds a batch of texts, preserving input order
func (a *Adapter) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(wireEmbeddingsRequest{
		Model: a.embedModel,
		Input: texts,
	})
	if err != nil {
		return nil, providers.NewProviderError(a.name, "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	respBody, status, err := a.doWithRetry(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, a.handleErrorResponse(status, respBody)
	}

	var wire wireEmbeddingsResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, providers.NewProviderError(a.name, "UNMARSHAL_ERROR", "failed to unmarshal response", status, false, err)
	}
	if len(wire.Data) != len(texts) {
		return nil, providers.NewProviderError(a.name, "EMBEDDING_MISMATCH",
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(wire.Data)), status, false, nil)
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range wire.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, providers.NewProviderError(a.name, "EMBEDDING_MISMATCH", "embedding index out of range", status, false, nil)
		}
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}

// IsAvailable checks if the provider is currently reachable
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// doWithRetry posts a JSON body, retrying transient failures. The
// request is rebuilt per attempt so the body reader is always fresh.
func (a *Adapter) doWithRetry(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		httpReq, err := a.newRequest(ctx, path, body)
		if err != nil {
			return nil, 0, err
		}

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			if attempt < a.config.MaxRetries {
				continue
			}
			return respBody, resp.StatusCode, nil
		}
		return respBody, resp.StatusCode, nil
	}

	return nil, 0, providers.NewProviderError(a.name, "HTTP_ERROR", "request failed after retries", 0, true, lastErr)
}

func (a *Adapter) newRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.name, "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (a *Adapter) buildWireRequest(req *providers.ChatRequest, stream bool) wireChatRequest {
	model := req.Model
	if model == "" {
		model = a.config.DefaultModel
	}
	return wireChatRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (a *Adapter) handleErrorResponse(status int, body []byte) error {
	var wire wireErrorResponse
	message := fmt.Sprintf("request failed with status %d", status)
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error.Message != "" {
		message = wire.Error.Message
	}

	code := "API_ERROR"
	retryable := status >= 500
	switch status {
	case http.StatusUnauthorized:
		code = "AUTH_ERROR"
	case http.StatusTooManyRequests:
		code = "RATE_LIMITED"
		retryable = true
	case http.StatusBadRequest:
		code = "BAD_REQUEST"
	}
	return providers.NewProviderError(a.name, code, message, status, retryable, nil)
}

// Wire types for the OpenAI-compatible API

type wireChatRequest struct {
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

type wireChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message providers.Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type wireStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type wireEmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type wireEmbeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type wireErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
