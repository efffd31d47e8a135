package rag

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/repositories"
	"github.com/maomaocong/audio-scene-api/services"
	"github.com/maomaocong/audio-scene-api/services/providers"
)

const (
	defaultTopK = 4
	maxTopK     = 20
)

// Service implements document ingestion and similarity retrieval
type Service struct {
	store    repositories.VectorStore
	embedder providers.Embedder
	logger   *zap.Logger
}

// NewService creates a new rag Service
func NewService(store repositories.VectorStore, embedder providers.Embedder, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Ingest chunks a document, embeds every chunk and stores the result
func (s *Service) Ingest(ctx context.Context, title, content string) (*models.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "content")
	}
	if strings.TrimSpace(title) == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "title")
	}

	texts := SplitText(content, DefaultChunkSize, DefaultChunkOverlap)
	embeddings, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, services.ErrProviderUnavailable.Wrap(err)
	}

	doc := &models.Document{
		ID:         uuid.New(),
		Title:      strings.TrimSpace(title),
		ChunkCount: len(texts),
		CreatedAt:  time.Now().UTC(),
	}

	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    text,
			Embedding:  embeddings[i],
		}
	}

	if err := s.store.SaveDocument(ctx, doc, chunks); err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		zap.String("document_id", doc.ID.String()),
		zap.String("title", doc.Title),
		zap.Int("chunks", len(chunks)))
	return doc, nil
}

// Search returns the chunks most similar to a query
func (s *Service) Search(ctx context.Context, query string, topK int) ([]models.ChunkMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "query")
	}
	if topK < 1 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	embeddings, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, services.ErrProviderUnavailable.Wrap(err)
	}

	return s.store.Search(ctx, embeddings[0], topK)
}

// ListDocuments returns all ingested documents
func (s *Service) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return s.store.ListDocuments(ctx)
}

// DeleteDocument removes a document and its chunks
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.logger.Info("document deleted", zap.String("document_id", id.String()))
	return nil
}
