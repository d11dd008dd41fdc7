package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dtnitsch/vincenzo/models"
)

// Storage writes export files under one directory.
type Storage struct {
	Dir string
}

// EnsureDir creates the storage directory if it is missing.
func (s *Storage) EnsureDir() error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %v", models.ErrIO, s.Dir, err)
	}
	return nil
}

// Path returns the full path of name inside the storage directory.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// SaveFile writes content to name, replacing any existing file.
func (s *Storage) SaveFile(name string, content []byte) (string, error) {
	path := s.Path(name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("%w: error saving file %s: %v", models.ErrIO, path, err)
	}
	return path, nil
}

// HasFile reports whether name already exists in the storage directory.
func (s *Storage) HasFile(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}
