package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store writes uploaded images into a shared directory under collision-free
// names and removes them once classification finishes. Each saved file is
// independent; the store keeps no cross-request state.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore ensures the upload directory exists and returns a store rooted at it.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: abs, logger: logger.Named("storage")}, nil
}

// Dir returns the absolute upload directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists the reader's bytes under a random name that preserves the
// original file extension and returns the absolute path.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	ext := filepath.Ext(filepath.Base(originalName))
	path := filepath.Join(s.dir, uuid.NewString()+ext)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}

	s.logger.Debug("upload saved", zap.String("path", path))
	return path, nil
}

// Verify confirms the saved file exists as a regular file. The classifier is
// never spawned on a path that fails this check.
func (s *Store) Verify(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat upload file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("upload path %s is not a regular file", path)
	}
	return nil
}

// Remove deletes a saved upload.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}
