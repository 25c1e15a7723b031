// Package preferences persists small device-local values, such as the
// organization a user last selected on a device.
package preferences

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// CurrentOrganizationKey names the selection slot for a user on a device.
func CurrentOrganizationKey(userID, deviceID string) string {
	return fmt.Sprintf("current_organization.%s.%s", userID, deviceID)
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStore keeps every value in one YAML document that is rewritten on each
// change.
type FileStore struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// OpenFileStore loads path, treating a missing file as empty.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.flush(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

// flush writes to a temp file and renames it over the target so readers
// never observe a partial document.
func (s *FileStore) flush() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
