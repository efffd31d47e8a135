package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/services"
	"github.com/maomaocong/audio-scene-api/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Handlers
// stay thin: they decode, call a service and hand failures here.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	switch {
	case services.IsNotFoundError(err):
		_ = utils.WriteNotFound(w, err.Error())

	case services.IsValidationError(err):
		_ = utils.WriteBadRequest(w, err.Error())

	case services.IsUnauthorizedError(err):
		_ = utils.WriteUnauthorized(w, err.Error())

	case services.IsForbiddenError(err):
		_ = utils.WriteForbidden(w, err.Error())

	case services.IsConflictError(err):
		_ = utils.WriteConflict(w, err.Error())

	case services.IsUpstreamError(err):
		// The upstream detail stays in the logs; callers only learn
		// that a dependency failed.
		logger.Error("upstream dependency failed", zap.Error(err))
		_ = utils.WriteBadGateway(w, err.Error())

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		_ = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if details := services.GetErrorDetails(err); details != nil {
		logger.Debug("handled service error",
			zap.String("type", string(services.GetErrorType(err))),
			zap.Any("details", details))
	}
}
