package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotExist is returned when the snapshot file is absent.
var ErrNotExist = errors.New("snapshot file does not exist")

// JSONFile is a whole-document JSON snapshot on disk. The document is
// fully encoded in memory and written in a single call; readers racing a
// write may see a torn file and get a decode error.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (f *JSONFile) Path() string { return f.path }

// Write replaces the file with v.
func (f *JSONFile) Write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", f.path, err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating directory for %s: %w", f.path, err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", f.path, err)
	}
	return nil
}

// Read decodes the file into v.
func (f *JSONFile) Read(v any) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotExist
		}
		return fmt.Errorf("error reading %s: %w", f.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error decoding %s: %w", f.path, err)
	}
	return nil
}

// Remove deletes the file; a missing file is not an error.
// It reports whether a file was actually removed.
func (f *JSONFile) Remove() (bool, error) {
	err := os.Remove(f.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("error removing %s: %w", f.path, err)
}
