package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage persists uploaded artifacts on disk under a base directory.
// Returned paths are slash separated and relative to the base directory.
type LocalStorage struct {
	baseDir string
	create  func(name string) (io.WriteCloser, error)
}

func createFile(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./media"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, create: createFile}, nil
}

// SaveStream copies r into a freshly named file under dir keeping the original extension.
func (s *LocalStorage) SaveStream(dir, originalName string, r io.Reader) (string, error) {
	rel := path.Join(cleanDir(dir), uuid.NewString()+strings.ToLower(filepath.Ext(originalName)))
	target := s.resolve(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare media directory: %w", err)
	}
	file, err := s.create(target)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write media stream: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close media file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(rel string) (*os.File, error) {
	file, err := os.Open(s.resolve(rel))
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	if err := os.Remove(s.resolve(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

// Root exposes the base directory for static serving.
func (s *LocalStorage) Root() string {
	return s.baseDir
}

// resolve never escapes the base directory.
func (s *LocalStorage) resolve(rel string) string {
	cleaned := path.Clean("/" + filepath.ToSlash(rel))
	return filepath.Join(s.baseDir, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
}

func cleanDir(dir string) string {
	cleaned := strings.Trim(path.Clean("/"+dir), "/")
	if cleaned == "" || cleaned == "." {
		return "uploads"
	}
	return cleaned
}
