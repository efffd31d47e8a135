package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/services/ai"
	"github.com/maomaocong/audio-scene-api/utils"
)

// ChatRequest asks for a model completion
type ChatRequest struct {
	Prompt   string `json:"prompt" validate:"required"`
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=openai openrouter"`
	Model    string `json:"model,omitempty"`
}

// RAGChatRequest asks for a completion grounded in ingested documents
type RAGChatRequest struct {
	Prompt   string `json:"prompt" validate:"required"`
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=openai openrouter"`
	Model    string `json:"model,omitempty"`
	TopK     int    `json:"topK,omitempty" validate:"omitempty,gte=1,lte=20"`
}

// AIService defines the generation operations the handler needs
type AIService interface {
	Chat(ctx context.Context, providerName, model, prompt string) (*models.ChatResult, error)
	ChatStream(ctx context.Context, providerName, model, prompt string, onChunk func(content string) error) error
	RAGChat(ctx context.Context, providerName, model, prompt string, topK int) (*ai.RAGResult, error)
	RAGChatStream(ctx context.Context, providerName, model, prompt string, topK int, onChunk func(content string) error) error
	Providers() []string
}

// AIHandler handles chat generation HTTP requests
type AIHandler struct {
	service AIService
	logger  *zap.Logger
}

// NewAIHandler creates a new AIHandler
func NewAIHandler(service AIService, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /ai/chat
func (h *AIHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	var req ChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Chat(r.Context(), req.Provider, req.Model, req.Prompt)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleChatStream handles POST /ai/stream/chat as server-sent
// events. The client going away cancels the request context, which
// tears down the upstream generation.
func (h *AIHandler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	var req ChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.streamEvents(w, func(onChunk func(content string) error) error {
		return h.service.ChatStream(r.Context(), req.Provider, req.Model, req.Prompt, onChunk)
	})
}

// HandleRAGChatStream handles POST /ai/stream/rag-chat
func (h *AIHandler) HandleRAGChatStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	var req RAGChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.streamEvents(w, func(onChunk func(content string) error) error {
		return h.service.RAGChatStream(r.Context(), req.Provider, req.Model, req.Prompt, req.TopK, onChunk)
	})
}

// streamEvents runs generate with an onChunk callback that frames each
// increment as an SSE data event, terminated by [DONE].
func (h *AIHandler) streamEvents(w http.ResponseWriter, generate func(onChunk func(content string) error) error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = utils.WriteInternalServerError(w, "Streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := generate(func(content string) error {
		payload, err := json.Marshal(models.StreamChunk{Content: content})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers are gone; the failure becomes a terminal event.
		h.logger.Warn("chat stream ended with error", zap.Error(err))
		payload, _ := json.Marshal(map[string]string{"error": "stream interrupted"})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// HandleRAGChat handles POST /ai/rag-chat
func (h *AIHandler) HandleRAGChat(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	var req RAGChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.RAGChat(r.Context(), req.Provider, req.Model, req.Prompt, req.TopK)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleProviders handles GET /ai/providers
func (h *AIHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string][]string{"providers": h.service.Providers()})
}
