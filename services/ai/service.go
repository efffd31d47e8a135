package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/services"
	"github.com/maomaocong/audio-scene-api/services/providers"
)

const scenePrompt = "You are an assistant that writes vivid, concrete descriptions of audio scenes and soundscapes."

// Retriever finds document chunks relevant to a query
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]models.ChunkMatch, error)
}

// RAGResult is a grounded chat answer with its sources
type RAGResult struct {
	models.ChatResult
	Sources []models.ChunkMatch `json:"sources"`
}

// Service implements chat generation over the configured providers
type Service struct {
	registry  *providers.Registry
	retriever Retriever
	logger    *zap.Logger
}

// NewService creates a new ai Service. retriever may be nil, which
// disables grounded chat.
func NewService(registry *providers.Registry, retriever Retriever, logger *zap.Logger) *Service {
	return &Service{
		registry:  registry,
		retriever: retriever,
		logger:    logger,
	}
}

// Chat generates a completion for a prompt
func (s *Service) Chat(ctx context.Context, providerName, model, prompt string) (*models.ChatResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, services.ErrEmptyPrompt
	}

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, services.ErrInvalidInput.WithDetail("provider", providerName)
	}

	resp, err := provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: "system", Content: scenePrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, translateProviderError(err)
	}

	s.logger.Info("chat completed",
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency))

	return &models.ChatResult{
		Content:  resp.Content,
		Provider: resp.Provider,
		Model:    resp.Model,
	}, nil
}

// ChatStream generates a completion, delivering increments to onChunk
// as they arrive. Cancelling the context stops generation.
func (s *Service) ChatStream(ctx context.Context, providerName, model, prompt string, onChunk func(content string) error) error {
	if strings.TrimSpace(prompt) == "" {
		return services.ErrEmptyPrompt
	}

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return services.ErrInvalidInput.WithDetail("provider", providerName)
	}

	err = provider.ChatStream(ctx, &providers.ChatRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: "system", Content: scenePrompt},
			{Role: "user", Content: prompt},
		},
	}, onChunk)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return translateProviderError(err)
	}
	return nil
}

// RAGChat answers a prompt grounded in retrieved document chunks
func (s *Service) RAGChat(ctx context.Context, providerName, model, prompt string, topK int) (*RAGResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, services.ErrEmptyPrompt
	}
	if s.retriever == nil {
		return nil, services.ErrInternal.WithDetail("reason", "retrieval is not configured")
	}

	matches, err := s.retriever.Search(ctx, prompt, topK)
	if err != nil {
		return nil, err
	}

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, services.ErrInvalidInput.WithDetail("provider", providerName)
	}

	resp, err := provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model:    model,
		Messages: groundedMessages(prompt, matches),
	})
	if err != nil {
		return nil, translateProviderError(err)
	}

	s.logger.Info("grounded chat completed",
		zap.String("provider", resp.Provider),
		zap.Int("sources", len(matches)))

	return &RAGResult{
		ChatResult: models.ChatResult{
			Content:  resp.Content,
			Provider: resp.Provider,
			Model:    resp.Model,
		},
		Sources: matches,
	}, nil
}

// RAGChatStream streams a grounded answer, delivering increments to
// onChunk. Retrieval happens up front; only generation streams.
func (s *Service) RAGChatStream(ctx context.Context, providerName, model, prompt string, topK int, onChunk func(content string) error) error {
	if strings.TrimSpace(prompt) == "" {
		return services.ErrEmptyPrompt
	}
	if s.retriever == nil {
		return services.ErrInternal.WithDetail("reason", "retrieval is not configured")
	}

	matches, err := s.retriever.Search(ctx, prompt, topK)
	if err != nil {
		return err
	}

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return services.ErrInvalidInput.WithDetail("provider", providerName)
	}

	err = provider.ChatStream(ctx, &providers.ChatRequest{
		Model:    model,
		Messages: groundedMessages(prompt, matches),
	}, onChunk)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return translateProviderError(err)
	}
	return nil
}

// Providers lists the configured provider names
func (s *Service) Providers() []string {
	return s.registry.List()
}

// groundedMessages frames retrieved chunks as context for the prompt.
// With nothing retrieved the model is told so rather than left to
// invent sources.
func groundedMessages(prompt string, matches []models.ChunkMatch) []providers.Message {
	var b strings.Builder
	b.WriteString(scenePrompt)
	if len(matches) == 0 {
		b.WriteString("\n\nNo reference material matched the question. Say so if the answer depends on it.")
	} else {
		b.WriteString("\n\nUse the following reference material when it is relevant:\n")
		for i, m := range matches {
			fmt.Fprintf(&b, "\n[%d] %s\n", i+1, m.Content)
		}
	}

	return []providers.Message{
		{Role: "system", Content: b.String()},
		{Role: "user", Content: prompt},
	}
}

// translateProviderError maps provider failures onto the domain error
// taxonomy. Client-side mistakes surface as validation errors, all
// else as an unavailable upstream.
func translateProviderError(err error) error {
	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		if provErr.StatusCode == http.StatusBadRequest {
			return services.ErrInvalidInput.Wrap(err)
		}
		return services.ErrProviderUnavailable.Wrap(err)
	}
	return services.ErrProviderUnavailable.Wrap(err)
}
