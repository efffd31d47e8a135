package audio

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/repositories"
	"github.com/maomaocong/audio-scene-api/services"
)

// allowedContentTypes are the audio MIME types accepted for upload
var allowedContentTypes = map[string]struct{}{
	"audio/mpeg": {},
	"audio/wav":  {},
	"audio/ogg":  {},
	"audio/aac":  {},
	"audio/m4a":  {},
	"audio/webm": {},
}

// UploadGrant is a short-lived permission to upload one object
type UploadGrant struct {
	UploadURL   string    `json:"uploadUrl"`
	Key         string    `json:"key"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Service hands out presigned upload URLs and manages audio objects
type Service struct {
	blobs  repositories.BlobStore
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new audio Service
func NewService(blobs repositories.BlobStore, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		blobs:  blobs,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// UploadURL issues a presigned upload grant. The object key is rooted
// in the caller's ID, so a grant can never write into another user's
// namespace.
func (s *Service) UploadURL(ctx context.Context, userID, fileName, contentType string) (*UploadGrant, error) {
	if _, ok := allowedContentTypes[contentType]; !ok {
		return nil, services.ErrUnsupportedAudio.WithDetail("contentType", contentType)
	}

	name := sanitizeFileName(fileName)
	if name == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "fileName")
	}

	key := fmt.Sprintf("%s/%d-%s", userID, s.now().UnixMilli(), name)
	uploadURL, err := s.blobs.PresignUpload(ctx, key, contentType, s.ttl)
	if err != nil {
		return nil, err
	}

	s.logger.Info("upload url issued",
		zap.String("user_id", userID),
		zap.String("key", key))

	return &UploadGrant{
		UploadURL:   uploadURL,
		Key:         key,
		DownloadURL: s.blobs.DownloadURL(key),
		ExpiresAt:   s.now().Add(s.ttl),
	}, nil
}

// DownloadURL resolves an object key to its CDN-fronted URL. CDN
// objects are world-readable, so no ownership check applies here.
func (s *Service) DownloadURL(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", services.ErrInvalidInput.WithDetail("field", "key")
	}
	return s.blobs.DownloadURL(key), nil
}

// Delete removes an audio object. Keys outside the caller's namespace
// are rejected.
func (s *Service) Delete(ctx context.Context, userID, key string) error {
	if !strings.HasPrefix(key, userID+"/") {
		return services.ErrForbidden
	}
	return s.blobs.Delete(ctx, key)
}

// sanitizeFileName reduces a client-supplied file name to its base
// component and strips characters that have meaning in object keys.
func sanitizeFileName(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
