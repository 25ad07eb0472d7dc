package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Storage is a string key/value store, the process-side equivalent of the
// browser's local and session storage.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage lives as long as the process, like session storage.
type MemoryStorage struct {
	mu   sync.RWMutex
	vals map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{vals: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vals[key], nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, key)
	return nil
}

// FileStorage persists values as a JSON object in a single file, like
// local storage.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals, err := f.load()
	if err != nil {
		return "", err
	}
	return vals[key], nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals, err := f.load()
	if err != nil {
		return err
	}
	vals[key] = value
	return f.save(vals)
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	vals, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := vals[key]; !ok {
		return nil
	}
	delete(vals, key)
	return f.save(vals)
}

func (f *FileStorage) load() (map[string]string, error) {
	vals := make(map[string]string)

	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return vals, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading storage file: %w", err)
	}
	if len(b) == 0 {
		return vals, nil
	}

	if err := json.Unmarshal(b, &vals); err != nil {
		return nil, fmt.Errorf("decoding storage file %s: %w", f.path, err)
	}
	return vals, nil
}

func (f *FileStorage) save(vals map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	b, err := json.MarshalIndent(vals, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("writing storage file: %w", err)
	}
	return os.Rename(tmp, f.path)
}
