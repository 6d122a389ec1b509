package state

import (
	"context"
	"sync"
)

// MemoryBackend is an in-memory Backend for tests, examples and single
// process sessions.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: map[string][]byte{}}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	value, ok := b.records[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.records[key] = append([]byte(nil), value...)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.records, key)
	b.mu.Unlock()
	return nil
}

// Keys returns the stored keys in no particular order.
func (b *MemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.records))
	for key := range b.records {
		keys = append(keys, key)
	}
	return keys
}
