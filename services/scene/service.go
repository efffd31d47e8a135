package scene

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/repositories"
	"github.com/maomaocong/audio-scene-api/services"
)

const (
	blobDeleteAttempts = 3
	blobDeleteBackoff  = 200 * time.Millisecond
)

// Service implements scene CRUD over the partitioned store. Every
// operation is scoped to the calling user's partition.
type Service struct {
	scenes repositories.SceneRepository
	blobs  repositories.BlobStore
	logger *zap.Logger
}

// NewService creates a new scene Service
func NewService(scenes repositories.SceneRepository, blobs repositories.BlobStore, logger *zap.Logger) *Service {
	return &Service{
		scenes: scenes,
		blobs:  blobs,
		logger: logger,
	}
}

// Create stores a new scene under the caller's partition. The scene ID
// is generated server side.
func (s *Service) Create(ctx context.Context, userID, sceneName, content, audioURL string) (*models.Scene, error) {
	scene := models.NewScene(userID, sceneName, content, audioURL)
	if err := s.scenes.Create(ctx, scene); err != nil {
		return nil, err
	}

	s.logger.Info("scene created",
		zap.String("user_id", userID),
		zap.String("scene_id", scene.SceneID))
	return scene, nil
}

// List returns a page of the caller's scenes, newest first
func (s *Service) List(ctx context.Context, userID string, page, pageSize int) (*models.PaginatedScenes, error) {
	return s.scenes.List(ctx, userID, page, pageSize)
}

// ListByName returns a page of the caller's scenes with a given name
func (s *Service) ListByName(ctx context.Context, userID, sceneName string, page, pageSize int) (*models.PaginatedScenes, error) {
	if sceneName == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "sceneName")
	}
	return s.scenes.ListByName(ctx, userID, sceneName, page, pageSize)
}

// Get retrieves one of the caller's scenes. A scene belonging to
// another user reads as not found.
func (s *Service) Get(ctx context.Context, userID, sceneID string) (*models.Scene, error) {
	return s.scenes.Get(ctx, userID, sceneID)
}

// Delete removes a scene and its audio object. The audio delete is
// retried a few times; after that the record delete proceeds anyway
// and the orphaned object is logged, because a dangling blob is
// recoverable while a dangling record is user-visible.
func (s *Service) Delete(ctx context.Context, userID, sceneID string) error {
	scene, err := s.scenes.Get(ctx, userID, sceneID)
	if err != nil {
		return err
	}

	if scene.AudioURL != "" {
		if key, ok := s.blobs.KeyFromURL(scene.AudioURL); ok {
			s.deleteBlob(ctx, key)
		} else {
			s.logger.Warn("scene audio url is not served by our cdn, skipping blob delete",
				zap.String("scene_id", sceneID),
				zap.String("audio_url", scene.AudioURL))
		}
	}

	if err := s.scenes.Delete(ctx, userID, sceneID); err != nil {
		return err
	}

	s.logger.Info("scene deleted",
		zap.String("user_id", userID),
		zap.String("scene_id", sceneID))
	return nil
}

func (s *Service) deleteBlob(ctx context.Context, key string) {
	var err error
	for attempt := 1; attempt <= blobDeleteAttempts; attempt++ {
		if err = s.blobs.Delete(ctx, key); err == nil {
			return
		}
		if attempt == blobDeleteAttempts || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(blobDeleteBackoff * time.Duration(attempt)):
		case <-ctx.Done():
		}
	}
	s.logger.Error("audio object orphaned after failed deletes",
		zap.String("key", key),
		zap.Int("attempts", blobDeleteAttempts),
		zap.Error(err))
}
