package prefs

import (
	"maps"
	"sync"
)

// MemoryStore keeps preferences for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore returns a store seeded with a copy of initial.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	data := make(map[string]string, len(initial))
	maps.Copy(data, initial)
	return &MemoryStore{data: data}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Close() error { return nil }
