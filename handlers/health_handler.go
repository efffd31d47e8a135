package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/utils"
)

// HealthChecker is any dependency that can report its own health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthStatus is the deep health report
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthHandler handles liveness and dependency health requests
type HealthHandler struct {
	components map[string]HealthChecker
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are
// skipped so optional dependencies need no special casing.
func NewHealthHandler(components map[string]HealthChecker, logger *zap.Logger) *HealthHandler {
	filtered := make(map[string]HealthChecker, len(components))
	for name, checker := range components {
		if checker != nil {
			filtered[name] = checker
		}
	}
	return &HealthHandler{
		components: filtered,
		logger:     logger,
	}
}

// HandleHealth handles GET /health, a pure liveness probe
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthStatus{Status: "ok"})
}

// HandleHealthDeep handles GET /health/deep, probing every dependency
func (h *HealthHandler) HandleHealthDeep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:     "ok",
		Components: make(map[string]string, len(h.components)),
	}

	for name, checker := range h.components {
		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("health check failed",
				zap.String("component", name),
				zap.Error(err))
			status.Components[name] = "unavailable"
			status.Status = "degraded"
		} else {
			status.Components[name] = "ok"
		}
	}

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	_ = utils.WriteJSON(w, code, utils.Response{
		Success:   status.Status == "ok",
		Data:      status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
