// Package prefs persists the preferred player's bus name between runs.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// Loader is the read side of the store, all a session needs.
type Loader interface {
	Load() (string, error)
}

// Store keeps a single JSON-encoded bus name in one file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store for path on fsys. A nil fsys means the OS filesystem.
func NewStore(fsys afero.Fs, path string) *Store {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Store{fs: fsys, path: path}
}

// Path returns the record location.
func (s *Store) Path() string { return s.path }

// Load returns the saved bus name, or "" when nothing has been saved yet.
func (s *Store) Load() (string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read preference: %w", err)
	}

	var service string
	if err := json.Unmarshal(data, &service); err != nil {
		return "", fmt.Errorf("parse preference %s: %w", s.path, err)
	}
	return service, nil
}

// Save overwrites the record. The file is replaced atomically so concurrent
// readers see either the old or the new value.
func (s *Store) Save(service string) error {
	data, err := json.Marshal(service)
	if err != nil {
		return fmt.Errorf("encode preference: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preference dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".player_pref-*")
	if err != nil {
		return fmt.Errorf("create temp preference: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write preference: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("write preference: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replace preference: %w", err)
	}
	return nil
}
