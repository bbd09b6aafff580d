package storage

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	key := ObjectKey("image-gallery", ".PNG", now)
	assert.Regexp(t, regexp.MustCompile(`^image-gallery/2025/03/07/[0-9a-f-]{8}\.png$`), key)

	bare := ObjectKey("image-gallery", "", now)
	assert.False(t, strings.Contains(bare[len("image-gallery/2025/03/07/"):], "."))
}

func TestThumbnailKey(t *testing.T) {
	assert.Equal(t, "image-gallery/2025/03/07/thumb_abc.jpg", ThumbnailKey("image-gallery/2025/03/07/abc.jpg"))
	assert.Equal(t, "thumb_abc.jpg", ThumbnailKey("abc.jpg"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("https://cdn.example.com/")

	require.NoError(t, s.Put(ctx, "a/b.jpg", strings.NewReader("data"), 4, "image/jpeg"))
	assert.True(t, s.Has("a/b.jpg"))
	assert.Equal(t, "https://cdn.example.com/a/b.jpg", s.URL("a/b.jpg"))

	require.NoError(t, s.Delete(ctx, "a/b.jpg"))
	assert.False(t, s.Has("a/b.jpg"))
	assert.Equal(t, 0, s.Len())
}

func TestNew_Drivers(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{Storage: config.StorageConfig{Driver: "memory"}}
	store, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Driver())

	cfg.Storage.Driver = "minio"
	_, err = New(ctx, cfg)
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg.Storage.Driver = "s3"
	_, err = New(ctx, cfg)
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg.Storage.Driver = "ftp"
	_, err = New(ctx, cfg)
	assert.Error(t, err)
}
