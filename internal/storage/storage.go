package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/recipevault/apiserver/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string

	// BaseURL is the default public URL prefix of objects in the bucket,
	// always ending in a slash.
	BaseURL() string
}

// Storage wraps an ObjectStorage backend and maps object keys to public URLs.
type Storage struct {
	backend ObjectStorage
	baseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend. An empty
// publicBaseURL falls back to the backend's own URL scheme.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	base := strings.TrimSpace(publicBaseURL)
	if base == "" {
		base = backend.BaseURL()
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Storage{backend: backend, baseURL: base}
}

// New selects and builds the backend named by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case config.StorageBackendS3, "":
		backend, err = NewS3Client(ctx, cfg.S3)
	case config.StorageBackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case config.StorageBackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Backend, err)
	}
	return NewStorage(backend, cfg.PublicBaseURL), nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// PublicURL returns the URL under which key is served.
func (s *Storage) PublicURL(key string) string {
	return s.baseURL + key
}

// ErrForeignURL is returned by KeyFromURL for URLs outside the bucket.
var ErrForeignURL = errors.New("url does not belong to the configured bucket")

// KeyFromURL is the inverse of PublicURL.
func (s *Storage) KeyFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, s.baseURL) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(url, s.baseURL)
	if key == "" {
		return "", ErrForeignURL
	}
	return key, nil
}
