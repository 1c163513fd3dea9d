// Package statefile persists component state as flat JSON files.
//
// Every stateful component (tracker, adapter, optimizer, planner, farmer)
// owns exactly one file. Writes go through a temp file followed by an
// atomic rename so a crash mid-write never leaves a torn file behind.
package statefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMode is used for regular state files.
const DefaultMode os.FileMode = 0o644

// SecretMode is used for files holding key material.
const SecretMode os.FileMode = 0o600

// Store reads and writes a single JSON state file.
type Store struct {
	path string
	mode os.FileMode
}

// NewStore creates a store for the given path with default permissions.
func NewStore(path string) *Store {
	return &Store{path: path, mode: DefaultMode}
}

// NewSecretStore creates a store whose file is written with 0600 permissions.
func NewSecretStore(path string) *Store {
	return &Store{path: path, mode: SecretMode}
}

// Path returns the file path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the state file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the state file into target. target must already hold the
// default values: keys absent from the file keep their defaults, so
// schema additions are backwards compatible. A missing file is not an
// error. A corrupt file is moved aside and defaults are kept.
func (s *Store) Load(target interface{}) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		backup := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().Unix())
		if renameErr := os.Rename(s.path, backup); renameErr == nil {
			log.Warn().
				Str("path", s.path).
				Str("backup", backup).
				Err(err).
				Msg("State file corrupt, moved aside and starting from defaults")
			return nil
		}
		return fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}

	return nil
}

// Save writes state atomically: marshal, write temp file, rename over the
// original.
func (s *Store) Save(state interface{}) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state for %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state dir %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, s.mode); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file %s: %w", s.path, err)
	}

	return nil
}
