package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// FilePermission is the mode of the JSON store file; it holds bearer tokens.
	FilePermission = 0o600
	dirPermission  = 0o700
)

// FileKV persists values as one JSON object, rewriting the whole file on
// every change. Writes go to a temporary file that is renamed into place so a
// multi-key delete is never half applied.
type FileKV struct {
	path   string
	values map[string]string
	mutex  sync.RWMutex
}

// NewFileKV loads the store at path, creating an empty one if it does not exist.
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}

	kv := &FileKV{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return kv, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &kv.values); err != nil {
			return nil, fmt.Errorf("failed to parse store file: %w", err)
		}
	}

	return kv, nil
}

func (f *FileKV) Get(key string) (string, bool, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	value, ok := f.values[key]
	return value, ok, nil
}

func (f *FileKV) Set(key, value string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	next := f.copyValues()
	next[key] = value
	return f.commit(next)
}

func (f *FileKV) Delete(keys ...string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	next := f.copyValues()
	for _, key := range keys {
		delete(next, key)
	}
	return f.commit(next)
}

func (f *FileKV) Close() error {
	return nil
}

func (f *FileKV) copyValues() map[string]string {
	next := make(map[string]string, len(f.values))
	for k, v := range f.values {
		next[k] = v
	}
	return next
}

// commit writes next to disk and only then makes it the in-memory state.
func (f *FileKV) commit(next map[string]string) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary store file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Chmod(FilePermission); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set store file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	f.values = next
	return nil
}
