// Package store provides key-value storage backends and the credential store built on them.
package store

import (
	"fmt"
	"sync"

	"songseeker/internal/core"
)

// KV is a small string key-value area. A multi-key Delete is applied as one
// operation: either every key is removed or none is.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
	Close() error
}

// Open creates the key-value backend selected by the storage configuration.
func Open(config *core.StorageConfig) (KV, error) {
	switch config.Driver {
	case "", "memory":
		return NewMemoryKV(), nil
	case "file":
		return NewFileKV(config.Path)
	case "sqlite":
		return NewSQLiteKV(config.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", config.Driver)
	}
}

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	values map[string]string
	mutex  sync.RWMutex
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Delete(keys ...string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *MemoryKV) Close() error {
	return nil
}
