package providers

import (
	"context"
	"fmt"
	"time"
)

// Provider is a unified chat-model provider interface. Any service
// speaking the OpenAI wire format can sit behind it.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "openrouter")
	Name() string

	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatStream performs a streaming chat completion, delivering
	// content increments to onChunk as they arrive. A non-nil error
	// from onChunk aborts the stream.
	ChatStream(ctx context.Context, req *ChatRequest, onChunk func(content string) error) error

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool
}

// Embedder turns texts into embedding vectors
type Embedder interface {
	// EmbedTexts embeds a batch of texts, preserving order
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Model identifier; empty selects the provider's default
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`
}

// Message represents a single message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	// Content is the assistant's reply
	Content string `json:"content"`

	// Model that produced the completion
	Model string `json:"model"`

	// Provider that handled the request
	Provider string `json:"provider"`

	// Usage statistics
	Usage Usage `json:"usage"`

	// Latency of the request
	Latency time.Duration `json:"latency"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config holds the connection settings for one provider
type Config struct {
	APIKey            string
	BaseURL           string
	DefaultModel      string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	Headers           map[string]string
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error [%s]: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError
func NewProviderError(provider, code, message string, statusCode int, retryable bool, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Err:        err,
	}
}
