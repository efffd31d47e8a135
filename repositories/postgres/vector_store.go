package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/services"
)

// VectorStore persists embedded document chunks in Postgres with the
// pgvector extension. Similarity uses cosine distance.
type VectorStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVectorStore creates a new VectorStore
func NewVectorStore(db *sql.DB, logger *zap.Logger) *VectorStore {
	return &VectorStore{db: db, logger: logger}
}

// Migrate creates the vector schema if it does not exist
func (s *VectorStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS rag_documents (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS rag_chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES rag_documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(1536) NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("vector schema migration failed: %w", err)
		}
	}
	return nil
}

// SaveDocument stores a document and its embedded chunks atomically
func (s *VectorStore) SaveDocument(ctx context.Context, doc *models.Document, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.ErrStoreUnavailable.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rag_documents (id, title, created_at) VALUES ($1, $2, $3)`,
		doc.ID, doc.Title, doc.CreatedAt)
	if err != nil {
		return services.ErrStoreUnavailable.Wrap(err)
	}

	for _, chunk := range chunks {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rag_chunks (id, document_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5::vector)`,
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, vectorLiteral(chunk.Embedding))
		if err != nil {
			return services.ErrStoreUnavailable.Wrap(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return services.ErrStoreUnavailable.Wrap(err)
	}

	s.logger.Info("document ingested",
		zap.String("document_id", doc.ID.String()),
		zap.Int("chunks", len(chunks)))
	return nil
}

// Search returns the chunks nearest to the query embedding, best first
func (s *VectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]models.ChunkMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, content,
		        1 - (embedding <=> $1::vector) AS score
		 FROM rag_chunks
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`,
		vectorLiteral(embedding), limit)
	if err != nil {
		return nil, services.ErrStoreUnavailable.Wrap(err)
	}
	defer rows.Close()

	var matches []models.ChunkMatch
	for rows.Next() {
		var m models.ChunkMatch
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Index, &m.Content, &m.Score); err != nil {
			return nil, services.ErrStoreUnavailable.Wrap(err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, services.ErrStoreUnavailable.Wrap(err)
	}
	return matches, nil
}

// ListDocuments returns all ingested documents, newest first
func (s *VectorStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.title, d.created_at, COUNT(c.id)
		 FROM rag_documents d
		 LEFT JOIN rag_chunks c ON c.document_id = d.id
		 GROUP BY d.id, d.title, d.created_at
		 ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, services.ErrStoreUnavailable.Wrap(err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.CreatedAt, &d.ChunkCount); err != nil {
			return nil, services.ErrStoreUnavailable.Wrap(err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, services.ErrStoreUnavailable.Wrap(err)
	}
	return docs, nil
}

// DeleteDocument removes a document; its chunks go with it via cascade
func (s *VectorStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rag_documents WHERE id = $1`, id)
	if err != nil {
		return services.ErrStoreUnavailable.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return services.ErrStoreUnavailable.Wrap(err)
	}
	if affected == 0 {
		return services.ErrDocumentNotFound
	}
	return nil
}

// HealthCheck verifies the store is reachable
func (s *VectorStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return services.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

// vectorLiteral renders an embedding in pgvector's input syntax
func vectorLiteral(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
