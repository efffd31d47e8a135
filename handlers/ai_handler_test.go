package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/services"
	"github.com/maomaocong/audio-scene-api/services/ai"
)

type mockAIService struct {
	result       *models.ChatResult
	chatErr      error
	chunks       []string
	streamErr    error
	ragResult    *ai.RAGResult
	ragErr       error
	providers    []string
	lastProvider string
	lastModel    string
	lastPrompt   string
	lastTopK     int
}

func (m *mockAIService) Chat(ctx context.Context, providerName, model, prompt string) (*models.ChatResult, error) {
	m.lastProvider = providerName
	m.lastModel = model
	m.lastPrompt = prompt
	return m.result, m.chatErr
}

func (m *mockAIService) ChatStream(ctx context.Context, providerName, model, prompt string, onChunk func(content string) error) error {
	if m.streamErr != nil {
		return m.streamErr
	}
	for _, c := range m.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAIService) RAGChat(ctx context.Context, providerName, model, prompt string, topK int) (*ai.RAGResult, error) {
	m.lastPrompt = prompt
	m.lastTopK = topK
	return m.ragResult, m.ragErr
}

func (m *mockAIService) RAGChatStream(ctx context.Context, providerName, model, prompt string, topK int, onChunk func(content string) error) error {
	m.lastPrompt = prompt
	m.lastTopK = topK
	if m.streamErr != nil {
		return m.streamErr
	}
	for _, c := range m.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAIService) Providers() []string { return m.providers }

func newAIHandler(svc *mockAIService) *AIHandler {
	return NewAIHandler(svc, zap.NewNop())
}

func TestHandleChat(t *testing.T) {
	svc := &mockAIService{
		result: &models.ChatResult{Content: "a low rumble of thunder", Provider: "openai", Model: "gpt-4o-mini"},
	}
	h := newAIHandler(svc)

	body := `{"prompt": "describe a storm", "provider": "openai", "model": "gpt-4o-mini"}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(body)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "openai", svc.lastProvider)
	assert.Equal(t, "describe a storm", svc.lastPrompt)
	assert.Contains(t, rec.Body.String(), "a low rumble of thunder")
}

func TestHandleChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing prompt", `{"provider": "openai"}`},
		{"unknown provider", `{"prompt": "hi", "provider": "bedrock"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAIHandler(&mockAIService{})
			req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(tt.body)), "user-1", "tok")
			rec := httptest.NewRecorder()
			h.HandleChat(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleChat_ProviderDown(t *testing.T) {
	h := newAIHandler(&mockAIService{chatErr: services.ErrProviderUnavailable})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/chat",
		strings.NewReader(`{"prompt": "hi"}`)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleChatStream(t *testing.T) {
	h := newAIHandler(&mockAIService{chunks: []string{"rain ", "falls ", "softly"}})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/stream/chat",
		strings.NewReader(`{"prompt": "describe rain"}`)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleChatStream(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	events := strings.Split(strings.TrimSpace(body), "\n\n")
	require.Len(t, events, 4)
	assert.Contains(t, events[0], `"rain "`)
	assert.Contains(t, events[1], `"falls "`)
	assert.Contains(t, events[2], `"softly"`)
	assert.Equal(t, "data: [DONE]", events[3])
}

func TestHandleChatStream_ErrorMidStream(t *testing.T) {
	h := newAIHandler(&mockAIService{streamErr: services.ErrProviderUnavailable})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/stream/chat",
		strings.NewReader(`{"prompt": "describe rain"}`)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleChatStream(rec, req)

	// Headers are already committed when the provider fails, so the
	// error travels as a terminal event instead of a status code.
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"error"`)
	assert.NotContains(t, body, "[DONE]")
}

func TestHandleChatStream_ValidationBeforeHeaders(t *testing.T) {
	h := newAIHandler(&mockAIService{})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/stream/chat",
		strings.NewReader(`{}`)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleChatStream(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRAGChatStream(t *testing.T) {
	svc := &mockAIService{chunks: []string{"grounded ", "answer"}}
	h := newAIHandler(svc)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/stream/rag-chat",
		strings.NewReader(`{"prompt": "what does rain sound like", "topK": 3}`)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleRAGChatStream(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, svc.lastTopK)
	body := rec.Body.String()
	assert.Contains(t, body, `"grounded "`)
	assert.Contains(t, body, "data: [DONE]")
}

func TestHandleRAGChat(t *testing.T) {
	svc := &mockAIService{
		ragResult: &ai.RAGResult{
			ChatResult: models.ChatResult{Content: "grounded answer", Provider: "openai"},
			Sources: []models.ChunkMatch{
				{Chunk: models.Chunk{Content: "reference text"}, Score: 0.91},
			},
		},
	}
	h := newAIHandler(svc)

	body := `{"prompt": "what does rain sound like", "topK": 2}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/rag-chat", strings.NewReader(body)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleRAGChat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, svc.lastTopK)
	assert.Contains(t, rec.Body.String(), "grounded answer")
	assert.Contains(t, rec.Body.String(), `"sources"`)
}

func TestHandleRAGChat_TopKOutOfRange(t *testing.T) {
	h := newAIHandler(&mockAIService{})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/ai/rag-chat",
		strings.NewReader(`{"prompt": "hi", "topK": 50}`)), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleRAGChat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProviders(t *testing.T) {
	h := newAIHandler(&mockAIService{providers: []string{"openai", "openrouter"}})

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/ai/providers", nil), "user-1", "tok")
	rec := httptest.NewRecorder()
	h.HandleProviders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openrouter")
}
