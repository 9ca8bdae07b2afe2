package recurring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists patterns as a JSON mapping of charge name to
// configuration, rewritten in full after each classification run.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed pattern store. A missing file is
// an empty pattern set, not an error.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (f *FileStore) Load() (map[string]*Pattern, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Pattern), nil
		}
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}

	patterns := make(map[string]*Pattern)
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", f.path, err)
	}
	for _, p := range patterns {
		p.normalize()
	}
	return patterns, nil
}

// Save implements Store with the atomic write pattern (temp file, then
// rename).
func (f *FileStore) Save(patterns map[string]*Pattern) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal patterns: %w", err)
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
