package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maomaocong/audio-scene-api/services/providers"
)

func testAdapter(baseURL string) *Adapter {
	return NewAdapter("openai", providers.Config{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		DefaultModel: "gpt-4o-mini",
		Timeout:      5 * time.Second,
		RetryDelay:   time.Millisecond,
	})
}

func chatRequest() *providers.ChatRequest {
	return &providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: "describe rain"}},
	}
}

func TestChatCompletion(t *testing.T) {
	var gotAuth string
	var gotBody wireChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "soft and steady"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
		}`)
	}))
	defer server.Close()

	resp, err := testAdapter(server.URL).ChatCompletion(context.Background(), chatRequest())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model, "empty model should fall back to the default")
	assert.False(t, gotBody.Stream)
	assert.Equal(t, "soft and steady", resp.Content)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestChatCompletion_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer server.Close()

	_, err := testAdapter(server.URL).ChatCompletion(context.Background(), chatRequest())
	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "AUTH_ERROR", provErr.Code)
	assert.Equal(t, "bad key", provErr.Message)
	assert.False(t, provErr.Retryable)
}

func TestChatCompletion_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"model": "gpt-4o-mini", "choices": [{"message": {"content": "ok"}}], "usage": {}}`)
	}))
	defer server.Close()

	adapter := NewAdapter("openai", providers.Config{
		APIKey:       "k",
		BaseURL:      server.URL,
		DefaultModel: "gpt-4o-mini",
		MaxRetries:   2,
		RetryDelay:   time.Millisecond,
	})

	resp, err := adapter.ChatCompletion(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, calls)
}

func TestChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body wireChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"soft\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" rain\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	var chunks []string
	err := testAdapter(server.URL).ChatStream(context.Background(), chatRequest(), func(content string) error {
		chunks = append(chunks, content)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"soft", " rain"}, chunks)
}

func TestChatStream_CallbackAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"%d\"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	abort := errors.New("client went away")
	var count int
	err := testAdapter(server.URL).ChatStream(context.Background(), chatRequest(), func(content string) error {
		count++
		if count == 2 {
			return abort
		}
		return nil
	})
	assert.ErrorIs(t, err, abort)
	assert.Equal(t, 2, count)
}

func TestChatStream_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "slow down"}}`)
	}))
	defer server.Close()

	err := testAdapter(server.URL).ChatStream(context.Background(), chatRequest(), func(string) error { return nil })
	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "RATE_LIMITED", provErr.Code)
	assert.True(t, provErr.Retryable)
}

func TestEmbedTexts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body wireEmbeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body.Model)
		assert.Equal(t, []string{"first", "second"}, body.Input)

		// Out of order on purpose; the index field decides placement.
		fmt.Fprint(w, `{"data": [
			{"index": 1, "embedding": [0.3, 0.4]},
			{"index": 0, "embedding": [0.1, 0.2]}
		]}`)
	}))
	defer server.Close()

	embeddings, err := testAdapter(server.URL).EmbedTexts(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, embeddings)
}

func TestEmbedTexts_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{"index": 0, "embedding": [0.1]}]}`)
	}))
	defer server.Close()

	_, err := testAdapter(server.URL).EmbedTexts(context.Background(), []string{"a", "b"})
	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "EMBEDDING_MISMATCH", provErr.Code)
}

func TestIsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.True(t, testAdapter(server.URL).IsAvailable(context.Background()))

	server.Close()
	assert.False(t, testAdapter(server.URL).IsAvailable(context.Background()))
}
