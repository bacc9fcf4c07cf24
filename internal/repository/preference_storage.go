package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// PreferenceStorage keeps preferences in memory and persists them to a JSON
// file on every change.
type PreferenceStorage struct {
	mu     sync.RWMutex
	values map[string]string
	file   string
	logger *slog.Logger
}

// NewPreferenceStorage loads preferences from filePath if it exists.
func NewPreferenceStorage(filePath string, logger *slog.Logger) (*PreferenceStorage, error) {
	repo := &PreferenceStorage{
		values: make(map[string]string),
		file:   filepath.Clean(filePath),
		logger: logger,
	}

	if err := repo.restore(); err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	logger.Debug("preference storage initialized", "file_path", repo.file, "keys", len(repo.values))
	return repo, nil
}

func (r *PreferenceStorage) restore() error {
	data, err := os.ReadFile(r.file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read preference file: %w", err)
	}

	if len(data) == 0 {
		r.logger.Warn("preference file is empty", "file_path", r.file)
		return nil
	}

	if err := json.Unmarshal(data, &r.values); err != nil {
		return fmt.Errorf("failed to unmarshal preference file: %w", err)
	}
	return nil
}

func (r *PreferenceStorage) persist() error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r.values, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.file), 0o755); err != nil {
		return fmt.Errorf("failed to create preference dir: %w", err)
	}

	tempFile := r.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, r.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (r *PreferenceStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.values[key]
	return value, ok, nil
}

// Set stores value under key and persists the file.
func (r *PreferenceStorage) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.values[key] = value
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}

	r.logger.Debug("preference saved", "key", key, "value", value)
	return nil
}
