package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/utils"
)

// IngestDocumentRequest submits a document for ingestion
type IngestDocumentRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	Content string `json:"content" validate:"required"`
}

// SearchRequest runs a similarity search over ingested documents
type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"topK,omitempty" validate:"omitempty,gte=1,lte=20"`
}

// RAGService defines the retrieval operations the handler needs
type RAGService interface {
	Ingest(ctx context.Context, title, content string) (*models.Document, error)
	Search(ctx context.Context, query string, topK int) ([]models.ChunkMatch, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

// RAGHandler handles knowledge-base HTTP requests
type RAGHandler struct {
	service RAGService
	logger  *zap.Logger
}

// NewRAGHandler creates a new RAGHandler
func NewRAGHandler(service RAGService, logger *zap.Logger) *RAGHandler {
	return &RAGHandler{
		service: service,
		logger:  logger,
	}
}

// HandleIngest handles POST /rag/documents (admin)
func (h *RAGHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestDocumentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	doc, err := h.service.Ingest(r.Context(), req.Title, req.Content)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, doc)
}

// HandleListDocuments handles GET /rag/documents
func (h *RAGHandler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListDocuments(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	_ = utils.WriteOK(w, docs)
}

// HandleDeleteDocument handles DELETE /rag/documents/{documentId} (admin)
func (h *RAGHandler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "documentId"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid document id")
		return
	}

	if err := h.service.DeleteDocument(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Document deleted")
}

// HandleSearch handles POST /rag/search
func (h *RAGHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	matches, err := h.service.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if matches == nil {
		matches = []models.ChunkMatch{}
	}
	_ = utils.WriteOK(w, matches)
}
