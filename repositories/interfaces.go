package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/maomaocong/audio-scene-api/models"
)

// SceneRepository handles scene persistence in the partitioned KV store
type SceneRepository interface {
	// Create stores a new scene
	Create(ctx context.Context, scene *models.Scene) error

	// Get retrieves one scene within the owner's partition
	Get(ctx context.Context, userID, sceneID string) (*models.Scene, error)

	// List returns a page of the owner's scenes, newest first
	List(ctx context.Context, userID string, page, pageSize int) (*models.PaginatedScenes, error)

	// ListByName returns a page of the owner's scenes with a given name,
	// served from a secondary index whose total is approximate
	ListByName(ctx context.Context, userID, sceneName string, page, pageSize int) (*models.PaginatedScenes, error)

	// Delete removes one scene from the owner's partition
	Delete(ctx context.Context, userID, sceneID string) error

	// HealthCheck verifies the table is reachable
	HealthCheck(ctx context.Context) error
}

// BlobStore handles audio object storage and delivery URLs
type BlobStore interface {
	// PresignUpload returns a write-scoped URL for a single object key
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// DownloadURL returns the CDN-served URL for an object key
	DownloadURL(key string) string

	// KeyFromURL recovers the object key from a CDN URL, if it is one
	KeyFromURL(rawURL string) (string, bool)

	// Delete removes an object
	Delete(ctx context.Context, key string) error
}

// VectorStore handles embedded document chunks for retrieval
type VectorStore interface {
	// SaveDocument stores a document and its embedded chunks atomically
	SaveDocument(ctx context.Context, doc *models.Document, chunks []models.Chunk) error

	// Search returns the chunks nearest to the query embedding
	Search(ctx context.Context, embedding []float32, limit int) ([]models.ChunkMatch, error)

	// ListDocuments returns all ingested documents
	ListDocuments(ctx context.Context) ([]models.Document, error)

	// DeleteDocument removes a document and its chunks
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// HealthCheck verifies the store is reachable
	HealthCheck(ctx context.Context) error
}
