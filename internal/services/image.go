package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recipevault/apiserver/internal/logging"
)

const (
	// MaxImageSize is the largest accepted upload.
	MaxImageSize = 5 << 20

	imageFolder = "recipe-images"
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/gif":  {},
}

// ImageStore is the object storage the image service writes to.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	KeyFromURL(url string) (string, error)
}

// ImageUpload is an uploaded image file.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageService validates recipe images and stores them in object storage.
type ImageService struct {
	store ImageStore
	log   logging.Logger
	now   func() time.Time
}

func NewImageService(store ImageStore, log logging.Logger) *ImageService {
	if log == nil {
		log = logging.Nop()
	}
	return &ImageService{store: store, log: log, now: time.Now}
}

// Upload stores the image and returns its public URL.
func (s *ImageService) Upload(ctx context.Context, in ImageUpload) (string, error) {
	if in.Size <= 0 || in.Body == nil {
		return "", invalidInput("File cannot be empty")
	}
	if in.Size > MaxImageSize {
		return "", invalidInput("File size exceeds maximum limit of 5MB")
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if _, ok := allowedImageTypes[contentType]; !ok {
		return "", invalidInput("Only JPG, PNG, and GIF images are allowed")
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", invalidInput("File cannot be empty")
	}
	if len(data) > MaxImageSize {
		return "", invalidInput("File size exceeds maximum limit of 5MB")
	}

	key := s.objectKey(in.Filename)
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.log.Error(ctx, "image upload failed", "key", key, "error", err)
		return "", fmt.Errorf("%w: upload image: %v", ErrStorage, err)
	}
	return s.store.PublicURL(key), nil
}

// Delete removes the image behind a URL previously returned by Upload.
func (s *ImageService) Delete(ctx context.Context, imageURL string) error {
	key, err := s.store.KeyFromURL(strings.TrimSpace(imageURL))
	if err != nil {
		return invalidInput("Invalid image URL format")
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Error(ctx, "image delete failed", "key", key, "error", err)
		return fmt.Errorf("%w: delete image: %v", ErrStorage, err)
	}
	return nil
}

// objectKey builds "recipe-images/<uuid>-<unix millis><ext>".
func (s *ImageService) objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if strings.ContainsAny(ext, " ?#%") {
		ext = ""
	}
	return imageFolder + "/" + uuid.NewString() + "-" + strconv.FormatInt(s.now().UnixMilli(), 10) + ext
}
