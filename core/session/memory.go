package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps encoded records in process memory.
type MemoryBackend struct {
	mu        sync.RWMutex
	items     map[string][]byte
	enumerate bool
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithMemoryEnumeration toggles GetAll support. Disabled, the backend
// behaves like a cache without an iteration API.
func WithMemoryEnumeration(enabled bool) MemoryOption {
	return func(m *MemoryBackend) {
		m.enumerate = enabled
	}
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		items:     make(map[string][]byte),
		enumerate: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryBackend) Get(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	data, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return Record{}, ErrNotFound
	}

	rec, err := DecodeRecord(data)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryBackend) GetAll(_ context.Context) (map[string]Record, error) {
	if !m.enumerate {
		return nil, ErrUnsupported
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Record, len(m.items))
	for key, data := range m.items {
		rec, err := DecodeRecord(data)
		if err != nil {
			continue
		}
		out[key] = rec
	}
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, rec Record) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return Fatal(err)
	}

	m.mu.Lock()
	m.items[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys, including expired ones.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
