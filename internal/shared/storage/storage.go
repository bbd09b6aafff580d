// Package storage abstracts the object store that holds gallery images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/google/uuid"
)

// ErrNotConfigured 对象存储未配置
var ErrNotConfigured = errors.New("object storage is not configured")

// ObjectStore 对象存储
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	Driver() string
}

// New 按配置创建对象存储
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "minio":
		return NewMinIOStore(cfg.MinIO, cfg.Storage.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, cfg.S3, cfg.Storage.PublicBaseURL)
	case "memory":
		return NewMemoryStore(cfg.Storage.PublicBaseURL), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// ObjectKey 生成对象键 {prefix}/YYYY/MM/DD/{uuid8}.{ext}
func ObjectKey(prefix, ext string, now time.Time) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	name := uuid.New().String()[:8]
	if ext != "" {
		name += "." + ext
	}
	return path.Join(prefix, now.Format("2006/01/02"), name)
}

// ThumbnailKey 缩略图对象键
func ThumbnailKey(key string) string {
	dir, file := path.Split(key)
	return dir + "thumb_" + file
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// MemoryStore 进程内对象存储，用于测试与本地调试
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryStore{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) URL(key string) string { return joinURL(s.baseURL, key) }

func (s *MemoryStore) Driver() string { return "memory" }

// Has 对象是否存在
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

// Len 对象数量
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
