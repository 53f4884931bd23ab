// Package files implements the upload and download operations of the storage API.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/reponote/storage/internal/storage"
)

// ErrNotFound is returned when a download URL cannot be produced for a key.
// Every backend failure on download collapses into it.
var ErrNotFound = errors.New("file not found")

// Service contains the business logic for storing and retrieving files.
type Service struct {
	store storage.Storage
	newID func() string
}

// NewService creates a new files Service backed by store.
func NewService(store storage.Storage) *Service {
	return &Service{store: store, newID: func() string { return uuid.NewString() }}
}

// Upload stores body under a freshly generated key derived from filename and
// returns that key. The client filename only contributes its extension.
func (s *Service) Upload(ctx context.Context, filename string, body io.Reader, contentType string) (string, error) {
	key := ObjectKey(s.newID(), filename)
	if err := s.store.Upload(ctx, key, body, contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// DownloadURL returns a pre-signed URL for key. Any failure, including a
// missing object, is reported as ErrNotFound wrapping the backend error.
func (s *Service) DownloadURL(ctx context.Context, key string) (string, error) {
	url, err := s.store.PresignedURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return url, nil
}

// Extension returns the part of filename after its last ".". A name without
// a dot is returned whole, so "README" yields "README".
func Extension(filename string) string {
	return filename[strings.LastIndex(filename, ".")+1:]
}

// ObjectKey builds the storage key "<id>.<extension>".
func ObjectKey(id, filename string) string {
	return id + "." + Extension(filename)
}
