package audio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/services"
)

type mockBlobs struct {
	presignedKey  string
	presignedType string
	presignedTTL  time.Duration
	presignErr    error
	deletes       []string
}

func (m *mockBlobs) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	m.presignedKey = key
	m.presignedType = contentType
	m.presignedTTL = ttl
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "https://signed.example.com/upload", nil
}

func (m *mockBlobs) DownloadURL(key string) string { return "https://cdn.example.com/" + key }

func (m *mockBlobs) KeyFromURL(rawURL string) (string, bool) { return "", false }

func (m *mockBlobs) Delete(ctx context.Context, key string) error {
	m.deletes = append(m.deletes, key)
	return nil
}

func newTestService(blobs *mockBlobs) *Service {
	svc := NewService(blobs, time.Hour, zap.NewNop())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000).UTC() }
	return svc
}

func TestUploadURL(t *testing.T) {
	blobs := &mockBlobs{}
	svc := newTestService(blobs)

	grant, err := svc.UploadURL(context.Background(), "user-1", "track.mp3", "audio/mpeg")
	require.NoError(t, err)

	assert.Equal(t, "user-1/1700000000000-track.mp3", grant.Key)
	assert.Equal(t, "https://signed.example.com/upload", grant.UploadURL)
	assert.Equal(t, "https://cdn.example.com/user-1/1700000000000-track.mp3", grant.DownloadURL)
	assert.Equal(t, time.Hour, blobs.presignedTTL)
	assert.Equal(t, "audio/mpeg", blobs.presignedType)
	assert.True(t, strings.HasPrefix(grant.Key, "user-1/"), "keys must live in the caller's namespace")
}

func TestUploadURL_ContentTypes(t *testing.T) {
	tests := []struct {
		contentType string
		wantErr     bool
	}{
		{"audio/mpeg", false},
		{"audio/wav", false},
		{"audio/ogg", false},
		{"audio/aac", false},
		{"audio/m4a", false},
		{"audio/webm", false},
		{"audio/flac", true},
		{"video/mp4", true},
		{"application/octet-stream", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			svc := newTestService(&mockBlobs{})
			_, err := svc.UploadURL(context.Background(), "user-1", "track.bin", tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, services.ErrUnsupportedAudio)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUploadURL_SanitizesFileName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		wantTail string
	}{
		{"path traversal stripped", "../../etc/passwd", "passwd"},
		{"windows separators stripped", `..\..\track.mp3`, "track.mp3"},
		{"spaces replaced", "my track.mp3", "my_track.mp3"},
		{"unicode replaced", "trâck.mp3", "tr_ck.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := &mockBlobs{}
			svc := newTestService(blobs)

			grant, err := svc.UploadURL(context.Background(), "user-1", tt.fileName, "audio/mpeg")
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(grant.Key, "-"+tt.wantTail), "got key %q", grant.Key)
		})
	}
}

func TestUploadURL_PresignError(t *testing.T) {
	blobs := &mockBlobs{presignErr: services.ErrBlobUnavailable.Wrap(errors.New("signing failed"))}
	svc := newTestService(blobs)

	_, err := svc.UploadURL(context.Background(), "user-1", "track.mp3", "audio/mpeg")
	assert.True(t, services.IsUpstreamError(err))
}

func TestDelete(t *testing.T) {
	blobs := &mockBlobs{}
	svc := newTestService(blobs)

	require.NoError(t, svc.Delete(context.Background(), "user-1", "user-1/123-track.mp3"))
	assert.Equal(t, []string{"user-1/123-track.mp3"}, blobs.deletes)
}

func TestDelete_ForeignNamespace(t *testing.T) {
	blobs := &mockBlobs{}
	svc := newTestService(blobs)

	err := svc.Delete(context.Background(), "user-1", "user-2/123-track.mp3")
	assert.ErrorIs(t, err, services.ErrForbidden)
	assert.Empty(t, blobs.deletes)
}
