// Package file implements the local persistence tier on the filesystem.
// Each key becomes one JSON-bearing file; writes go through a temp file and
// an atomic rename so a concurrent restore never observes a half-written
// snapshot.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finlayer/onboard/pkg/domain"
)

// Store implements ports.LocalStore using a directory of files.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath. If basePath is empty it defaults
// to ".onboard/cache".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".onboard", "cache")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(key string) string {
	// Keys contain ":" separators; keep filenames portable.
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	return filepath.Join(s.BasePath, name+".json")
}

// Get reads the value stored under key.
func (s *Store) Get(key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrSnapshotNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), nil
}

// Set writes the value atomically: temp file, fsync, rename.
func (s *Store) Set(key, value string) error {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.BasePath, "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmp.WriteString(value); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

// Delete removes the key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
