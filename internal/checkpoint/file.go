package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// CurrentVersion is the checkpoint state file format version.
const CurrentVersion = 1

// fileState is the on-disk JSON shape. Balances are decimal strings;
// an empty string marks a placeholder awaiting operator input.
type fileState struct {
	Version     int               `json:"version"`
	Checkpoints map[string]string `json:"checkpoints"`
	Metadata    fileMetadata      `json:"metadata"`
}

type fileMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Total       int       `json:"totalCheckpoints"`
}

// FileStore is the JSON-file backed Store.
type FileStore struct {
	path  string
	state fileState
}

// OpenFile loads the checkpoint file, creating empty state when the
// file does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		state: fileState{
			Version:     CurrentVersion,
			Checkpoints: make(map[string]string),
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint file %s: %w", path, err)
	}
	if state.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported checkpoint file version %d (current version: %d)", state.Version, CurrentVersion)
	}
	if state.Checkpoints == nil {
		state.Checkpoints = make(map[string]string)
	}
	fs.state = state
	return fs, nil
}

// Lookup implements Store, recording an empty placeholder on miss.
func (f *FileStore) Lookup(scope string, date time.Time) (decimal.Decimal, error) {
	key := Key(scope, date)
	raw, ok := f.state.Checkpoints[key]
	if !ok {
		f.state.Checkpoints[key] = ""
		return decimal.Zero, ErrMissing
	}
	return parseValue(raw)
}

// Set implements Store.
func (f *FileStore) Set(scope string, date time.Time, balance decimal.Decimal) {
	f.state.Checkpoints[Key(scope, date)] = balance.String()
}

// Save atomically rewrites the state file (write temp, then rename).
func (f *FileStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f.state.Metadata.LastUpdated = time.Now()
	f.state.Metadata.Total = len(f.state.Checkpoints)

	data, err := json.MarshalIndent(&f.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
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

// Placeholders returns the keys awaiting operator input.
func (f *FileStore) Placeholders() []string {
	var keys []string
	for k, v := range f.state.Checkpoints {
		if v == "" {
			keys = append(keys, k)
		}
	}
	return keys
}
