package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/services"
)

// ObjectAPI is the subset of the S3 API the store uses directly
type ObjectAPI interface {
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// BlobStore stores audio objects in a bucket and serves them through a CDN
type BlobStore struct {
	presign presignFunc
	objects ObjectAPI
	bucket  string
	cdn     string
	logger  *zap.Logger
}

type presignFunc func(ctx context.Context, in *awss3.PutObjectInput, ttl time.Duration) (string, error)

// NewBlobStore creates a BlobStore from AWS SDK configuration
func NewBlobStore(awsCfg aws.Config, bucket, cdnDomain string, logger *zap.Logger) *BlobStore {
	client := awss3.NewFromConfig(awsCfg)
	presigner := awss3.NewPresignClient(client)

	presign := func(ctx context.Context, in *awss3.PutObjectInput, ttl time.Duration) (string, error) {
		req, err := presigner.PresignPutObject(ctx, in, awss3.WithPresignExpires(ttl))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}

	return newBlobStore(presign, client, bucket, cdnDomain, logger)
}

func newBlobStore(presign presignFunc, objects ObjectAPI, bucket, cdnDomain string, logger *zap.Logger) *BlobStore {
	return &BlobStore{
		presign: presign,
		objects: objects,
		bucket:  bucket,
		cdn:     strings.TrimSuffix(cdnDomain, "/"),
		logger:  logger,
	}
}

// PresignUpload returns a write-scoped URL for a single object key.
// The URL authorizes exactly one method, one key and one content type.
func (s *BlobStore) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	url, err := s.presign(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, ttl)
	if err != nil {
		s.logger.Error("presign upload failed",
			zap.String("key", key),
			zap.Error(err))
		return "", services.ErrBlobUnavailable.Wrap(err)
	}
	return url, nil
}

// DownloadURL returns the CDN-served URL for an object key
func (s *BlobStore) DownloadURL(key string) string {
	return fmt.Sprintf("%s/%s", s.cdn, key)
}

// KeyFromURL recovers the object key from a CDN URL. URLs pointing
// anywhere else are rejected so a delete can never reach a foreign
// object.
func (s *BlobStore) KeyFromURL(rawURL string) (string, bool) {
	prefix := s.cdn + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}

// Delete removes an object from the bucket
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.objects.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("delete object failed",
			zap.String("key", key),
			zap.Error(err))
		return services.ErrBlobUnavailable.Wrap(err)
	}
	return nil
}
