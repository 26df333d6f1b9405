package localstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in process. Stores sharing one backend behave like
// two tabs of the same browser origin.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	bc     *broadcaster
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string][]byte),
		bc:     newBroadcaster(),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = cloneBytes(value)
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryBackend) Publish(_ context.Context, c Change) error {
	c.Value = cloneBytes(c.Value)
	m.bc.publish(c)
	return nil
}

func (m *MemoryBackend) Subscribe(ctx context.Context) (<-chan Change, error) {
	return m.bc.subscribe(ctx), nil
}
