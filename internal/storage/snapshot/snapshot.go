// Package snapshot provides the file-backed persistence adapter for engine
// snapshots. The engine never trusts what comes back from Load; it runs
// validation and repair before adopting it.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore saves snapshots to a single JSON file. Writes go through a temp
// file and rename so a crash mid-save never corrupts the previous snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a store at the given path. The directory must exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored snapshot bytes, or nil if no snapshot exists.
func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return data, nil
}

// Save writes the snapshot bytes atomically.
func (s *FileStore) Save(data []byte) error {
	tmp := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// Clear removes the stored snapshot. Clearing an absent snapshot is not an
// error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
