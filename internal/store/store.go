// Package store persists the local list registry: which documents we
// know about, what we call them, and which one is open. Two flat
// files under the state directory, human-readable, portable.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/idilsaglam/synctodo/internal/model"
)

const (
	registryFileName = "lists.json"
	activeFileName   = "active"
)

// Store reads and writes the registry files. The entry blob and the
// active pointer are independent on purpose: "no active list" and
// "empty registry" are different states.
type Store struct {
	dir string
}

// New ensures the state directory exists.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) registryPath() string { return filepath.Join(s.dir, registryFileName) }
func (s *Store) activePath() string   { return filepath.Join(s.dir, activeFileName) }

// Load reads the registry. A missing or malformed blob yields an
// empty registry, never an error: corrupt local state must not take
// the application down.
func (s *Store) Load() (model.Registry, error) {
	var reg model.Registry

	b, err := os.ReadFile(s.registryPath())
	switch {
	case err == nil:
		if jerr := json.Unmarshal(b, &reg.Entries); jerr != nil {
			slog.Warn("malformed registry, starting empty", "err", jerr)
			reg.Entries = nil
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return model.Registry{}, fmt.Errorf("read registry: %w", err)
	}

	active, err := s.Active()
	if err != nil {
		return model.Registry{}, err
	}
	reg.ActiveID = active
	return reg, nil
}

// Save writes the full entry sequence in one write. Last writer wins;
// a single UI instance per state directory is assumed.
func (s *Store) Save(reg model.Registry) error {
	b, err := json.MarshalIndent(reg.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.WriteFile(s.registryPath(), b, 0o600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// SetActive persists the active document identifier. Empty means no
// active document.
func (s *Store) SetActive(id string) error {
	if err := os.WriteFile(s.activePath(), []byte(id), 0o600); err != nil {
		return fmt.Errorf("write active: %w", err)
	}
	return nil
}

// Active returns the persisted active identifier, or "" when absent.
func (s *Store) Active() (string, error) {
	b, err := os.ReadFile(s.activePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read active: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
