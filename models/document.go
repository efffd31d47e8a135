package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is an ingested knowledge-base document
type Document struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	ChunkCount int       `json:"chunkCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Chunk is one embedded slice of a document
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"documentId"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// ChunkMatch is a chunk scored against a query embedding
type ChunkMatch struct {
	Chunk
	Score float64 `json:"score"`
}
