package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(ctx context.Context) error { return m.err }

func TestHandleHealth(t *testing.T) {
	h := NewHealthHandler(nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleHealthDeep_AllHealthy(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"scenes":  &mockChecker{},
		"vectors": &mockChecker{},
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health/deep", nil)
	rec := httptest.NewRecorder()
	h.HandleHealthDeep(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool         `json:"success"`
		Data    HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ok", resp.Data.Status)
	assert.Equal(t, "ok", resp.Data.Components["scenes"])
	assert.Equal(t, "ok", resp.Data.Components["vectors"])
}

func TestHandleHealthDeep_Degraded(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"scenes":  &mockChecker{},
		"vectors": &mockChecker{err: errors.New("connection refused")},
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health/deep", nil)
	rec := httptest.NewRecorder()
	h.HandleHealthDeep(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Success bool         `json:"success"`
		Data    HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "degraded", resp.Data.Status)
	assert.Equal(t, "ok", resp.Data.Components["scenes"])
	assert.Equal(t, "unavailable", resp.Data.Components["vectors"])
}

func TestNewHealthHandler_SkipsNilCheckers(t *testing.T) {
	h := NewHealthHandler(map[string]HealthChecker{
		"scenes":  &mockChecker{},
		"vectors": nil,
	}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health/deep", nil)
	rec := httptest.NewRecorder()
	h.HandleHealthDeep(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "vectors")
}
