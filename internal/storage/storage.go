package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain"

	"github.com/google/uuid"
)

// AllowedImageExtensions lists the upload extensions accepted for product images.
var AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Upload describes a file received from a client
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store persists uploaded product images
type Store interface {
	// Save stores the upload and returns the URL to persist as image_url.
	Save(ctx context.Context, upload Upload) (string, error)
	// Delete removes a previously saved image by its URL. Unknown URLs are ignored.
	Delete(ctx context.Context, url string) error
}

// New builds the store selected by cfg.Driver
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.UploadDir, cfg.URLPrefix, cfg.MaxBytes)
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// validate checks the upload against the size limit and extension allow-list
// and returns the normalized extension.
func validate(upload Upload, maxBytes int64) (string, error) {
	if maxBytes > 0 && upload.Size > maxBytes {
		return "", domain.ErrImageTooLarge
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	for _, allowed := range AllowedImageExtensions {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", domain.ErrUnsupportedImage
}

// generateName returns <unix-millis>-<uuid8><ext>
func generateName(ext string) string {
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.New().String()[:8], ext)
}
