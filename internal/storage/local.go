// Package storage persists attachment binaries and hands back stable
// references. Deletion is independent of message deletion.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTooLarge is returned when the written content exceeds the configured
// per-file ceiling. The partial file is removed before returning.
var ErrTooLarge = fmt.Errorf("storage: content exceeds maximum size")

// Ref is the stable reference returned for stored content.
type Ref struct {
	Path string
	Size int64
}

// Store is the attachment persistence contract.
type Store interface {
	Store(r io.Reader, namespace, filename string) (Ref, error)
	URLFor(path string) string
	Delete(path string) error
}

// LocalStore writes attachments under a base directory on local disk.
type LocalStore struct {
	basePath string
	baseURL  string
	maxBytes int64
	log      zerolog.Logger
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(basePath, baseURL string, maxBytes int64, log zerolog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStore{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxBytes: maxBytes,
		log:      log.With().Str("component", "attachment-store").Logger(),
	}, nil
}

// Store writes the content under namespace with a generated name that keeps
// the original extension. The size ceiling is re-checked here regardless of
// what the caller validated.
func (s *LocalStore) Store(r io.Reader, namespace, filename string) (Ref, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext
	rel := filepath.ToSlash(filepath.Join(namespace, name))

	full := filepath.Join(s.basePath, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Ref{}, fmt.Errorf("create namespace directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return Ref{}, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	limit := io.LimitReader(r, s.maxBytes+1)
	written, err := io.Copy(f, limit)
	if err != nil {
		_ = os.Remove(full)
		return Ref{}, fmt.Errorf("write file: %w", err)
	}
	if written > s.maxBytes {
		_ = os.Remove(full)
		return Ref{}, ErrTooLarge
	}

	s.log.Debug().Str("path", rel).Int64("bytes", written).Msg("attachment stored")
	return Ref{Path: rel, Size: written}, nil
}

// URLFor returns the public URL for a stored path.
func (s *LocalStore) URLFor(path string) string {
	return s.baseURL + "/" + filepath.ToSlash(path)
}

// Delete removes stored content. Missing files are not an error; a retried
// delete must succeed.
func (s *LocalStore) Delete(path string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
