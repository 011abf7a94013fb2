package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Local storage keys.
const (
	KeyObservations = "fieldlog.observations"
	KeyLocations    = "fieldlog.locations"
	KeyPreferences  = "fieldlog.preferences"
	KeyExportLogs   = "fieldlog.export_logs"
)

// KV is a string-keyed blob store.
type KV interface {
	// Get returns the value for key; ok is false when the key was never set.
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileKV stores each key as <dir>/<key>.json. Writes overwrite the file in
// place; a crash mid-write can leave a truncated blob.
type FileKV struct {
	dir string
}

// NewFileKV creates dir if needed and returns a store rooted there.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageError(fmt.Errorf("failed to create local storage directory: %w", err), "kv", "open")
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", storageError(fmt.Errorf("invalid storage key %q", key), "kv", "path")
	}
	return filepath.Join(f.dir, key+".json"), nil
}

// Get implements KV.
func (f *FileKV) Get(key string) ([]byte, bool, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, storageError(err, key, "read")
	}
	return data, true, nil
}

// Set implements KV.
func (f *FileKV) Set(key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, value, 0o600); err != nil {
		return storageError(err, key, "write")
	}
	return nil
}

// MemoryKV is an in-process KV. FailWrites makes Set fail, for tests.
type MemoryKV struct {
	mu         sync.Mutex
	data       map[string][]byte
	FailWrites error
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get implements KV.
func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set implements KV.
func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return storageError(m.FailWrites, key, "write")
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}
