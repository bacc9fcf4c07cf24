package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage keeps downloaded result files under one root directory, one
// subdirectory per task.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Path returns where a task's file is stored. Names that would escape the
// task directory are rejected.
func (s *FileStorage) Path(taskID, filename string) (string, error) {
	for _, part := range []string{taskID, filename} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid path component %q", part)
		}
	}
	return filepath.Join(s.dir, taskID, filename), nil
}

// EnsureTaskDir creates the directory for a task's files.
func (s *FileStorage) EnsureTaskDir(taskID string) error {
	path, err := s.Path(taskID, "_")
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// CreateFile creates (or truncates) a task file.
func (s *FileStorage) CreateFile(taskID, filename string) (*os.File, error) {
	path, err := s.Path(taskID, filename)
	if err != nil {
		return nil, err
	}
	return os.Create(path)
}

// AppendFile opens an existing task file for appending.
func (s *FileStorage) AppendFile(taskID, filename string) (*os.File, error) {
	path, err := s.Path(taskID, filename)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
}

// FileSize returns the size of a task file; ok is false when it does not
// exist.
func (s *FileStorage) FileSize(taskID, filename string) (size int64, ok bool) {
	path, err := s.Path(taskID, filename)
	if err != nil {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
