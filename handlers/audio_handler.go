package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/services/audio"
	"github.com/maomaocong/audio-scene-api/utils"
)

// UploadURLRequest asks for a presigned upload grant
type UploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required,min=1,max=255"`
	ContentType string `json:"contentType" validate:"required"`
}

// DeleteAudioRequest names an object key to remove
type DeleteAudioRequest struct {
	Key string `json:"key" validate:"required"`
}

// AudioService defines the audio operations the handler needs
type AudioService interface {
	UploadURL(ctx context.Context, userID, fileName, contentType string) (*audio.UploadGrant, error)
	DownloadURL(key string) (string, error)
	Delete(ctx context.Context, userID, key string) error
}

// AudioHandler handles audio upload HTTP requests
type AudioHandler struct {
	service AudioService
	logger  *zap.Logger
}

// NewAudioHandler creates a new AudioHandler
func NewAudioHandler(service AudioService, logger *zap.Logger) *AudioHandler {
	return &AudioHandler{
		service: service,
		logger:  logger,
	}
}

// HandleUploadURL handles POST /audio/upload-url
func (h *AudioHandler) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req UploadURLRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	grant, err := h.service.UploadURL(r.Context(), identity.UserID(), req.FileName, req.ContentType)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, grant)
}

// HandleDownloadURL handles GET /audio/url/{key}. Object keys contain
// slashes, so the route binds a catch-all parameter.
func (h *AudioHandler) HandleDownloadURL(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	url, err := h.service.DownloadURL(chi.URLParam(r, "*"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, map[string]string{"url": url})
}

// HandleDelete handles DELETE /audio
func (h *AudioHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req DeleteAudioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.Delete(r.Context(), identity.UserID(), req.Key); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Audio deleted")
}
