// Package laststore records the last chat room a user had open so a later
// session can return to it.
package laststore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// State is the on-disk document.
type State struct {
	LastRoom  string    `yaml:"last_room"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Store reads and writes State at a fixed path.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func New(path string) *Store {
	return &Store{path: path, now: func() time.Time { return time.Now().UTC() }}
}

// Save records roomID as the last active room. The file is replaced
// atomically so a crash never leaves half a document.
func (s *Store) Save(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(State{LastRoom: roomID, UpdatedAt: s.now()})
	if err != nil {
		return fmt.Errorf("laststore: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("laststore: ensure dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("laststore: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("laststore: replace: %w", err)
	}
	return nil
}

// Load returns the stored state; a missing file is an empty State.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("laststore: read: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("laststore: decode: %w", err)
	}
	return st, nil
}
