package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/middleware"
	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/utils"
)

// CreateSceneRequest represents a request to create a scene
type CreateSceneRequest struct {
	SceneName string `json:"sceneName" validate:"required,min=1,max=255"`
	Content   string `json:"content" validate:"required"`
	AudioURL  string `json:"audioUrl,omitempty" validate:"omitempty,url"`
}

// SceneService defines the scene operations the handler needs
type SceneService interface {
	Create(ctx context.Context, userID, sceneName, content, audioURL string) (*models.Scene, error)
	List(ctx context.Context, userID string, page, pageSize int) (*models.PaginatedScenes, error)
	ListByName(ctx context.Context, userID, sceneName string, page, pageSize int) (*models.PaginatedScenes, error)
	Get(ctx context.Context, userID, sceneID string) (*models.Scene, error)
	Delete(ctx context.Context, userID, sceneID string) error
}

// SceneHandler handles scene HTTP requests
type SceneHandler struct {
	service SceneService
	logger  *zap.Logger
}

// NewSceneHandler creates a new SceneHandler
func NewSceneHandler(service SceneService, logger *zap.Logger) *SceneHandler {
	return &SceneHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCreate handles POST /audio-scene
func (h *SceneHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req CreateSceneRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	scene, err := h.service.Create(r.Context(), identity.UserID(), req.SceneName, req.Content, req.AudioURL)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, scene)
}

// HandleList handles GET /audio-scene. A sceneName query switches to
// the name-indexed listing.
func (h *SceneHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	page, pageSize := pageParams(r)

	var (
		result *models.PaginatedScenes
		err    error
	)
	if name := r.URL.Query().Get("sceneName"); name != "" {
		result, err = h.service.ListByName(r.Context(), identity.UserID(), name, page, pageSize)
	} else {
		result, err = h.service.List(r.Context(), identity.UserID(), page, pageSize)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleListByName handles GET /audio-scene/scene/{sceneName}
func (h *SceneHandler) HandleListByName(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	page, pageSize := pageParams(r)
	result, err := h.service.ListByName(r.Context(), identity.UserID(), chi.URLParam(r, "sceneName"), page, pageSize)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}

// HandleGet handles GET /audio-scene/{sceneId}
func (h *SceneHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	scene, err := h.service.Get(r.Context(), identity.UserID(), chi.URLParam(r, "sceneId"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, scene)
}

// HandleDelete handles DELETE /audio-scene/{sceneId}
func (h *SceneHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity.UserID(), chi.URLParam(r, "sceneId")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Scene deleted")
}

// requireIdentity pulls the authenticated identity from the context.
// The auth middleware guarantees it on protected routes; this guards
// against a route wired up outside the gate.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*middleware.Identity, bool) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return identity, true
}
