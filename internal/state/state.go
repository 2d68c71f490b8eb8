// Package state persists the honeypot rotation state: the mapping from
// each logical page to the filename currently backing it on disk.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/koltyakov/snare/internal/domain"
)

// Store reads and writes the rotation state file. A single rotation
// process owns the file at a time; cross-process exclusion is handled by
// the caller via the instance lock, not here.
type Store struct {
	path string
}

// NewStore creates a store backed by the JSON state file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file or unparsable content
// yields an empty state, not an error: no prior state simply means no
// page has been rotated yet.
func (s *Store) Load() domain.State {
	st := domain.NewState()
	b, err := os.ReadFile(s.path)
	if err != nil {
		return st
	}
	var parsed domain.State
	if err := json.Unmarshal(b, &parsed); err != nil {
		return st
	}
	if parsed.CurrentURLs == nil {
		parsed.CurrentURLs = map[string]string{}
	}
	return parsed
}

// Save persists the full state with a fresh last-updated timestamp.
// The file is written to a temp sibling and renamed into place so a
// concurrent reader never observes truncated JSON.
func (s *Store) Save(st domain.State) error {
	st.LastUpdated = time.Now()

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
