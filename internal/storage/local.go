package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"storefront/internal/domain"
)

// LocalStore writes images to a directory served statically under URLPrefix
type LocalStore struct {
	Dir       string
	URLPrefix string
	MaxBytes  int64
}

// NewLocalStore creates the upload directory if needed
func NewLocalStore(dir, urlPrefix string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{
		Dir:       dir,
		URLPrefix: strings.TrimRight(urlPrefix, "/"),
		MaxBytes:  maxBytes,
	}, nil
}

func (s *LocalStore) Save(ctx context.Context, upload Upload) (string, error) {
	ext, err := validate(upload, s.MaxBytes)
	if err != nil {
		return "", err
	}

	name := generateName(ext)
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	// Read one byte past the limit so oversize bodies with a lying Size are caught.
	body := upload.Body
	if s.MaxBytes > 0 {
		body = io.LimitReader(body, s.MaxBytes+1)
	}
	written, err := io.Copy(f, body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.MaxBytes > 0 && written > s.MaxBytes {
		err = domain.ErrImageTooLarge
	}
	if err != nil {
		os.Remove(filepath.Join(s.Dir, name))
		if err == domain.ErrImageTooLarge {
			return "", err
		}
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return path.Join(s.URLPrefix, name), nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.URLPrefix+"/") {
		return nil
	}
	name := path.Base(url)
	err := os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}
