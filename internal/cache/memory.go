package cache

import (
	"context"
	"sync"
)

// MemoryTier is the in-process fast tier: a mutex-guarded map of blobs.
// It never returns an error.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryTier creates an empty in-process tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string][]byte)}
}

// Name implements Tier.
func (m *MemoryTier) Name() string { return "fast" }

// Get implements Tier.
func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return blob, nil
}

// Set implements Tier.
func (m *MemoryTier) Set(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = blob
	return nil
}

// Delete implements Tier.
func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Clear implements Tier.
func (m *MemoryTier) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	return nil
}

// Count implements Tier.
func (m *MemoryTier) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Sample implements Tier. Map iteration order makes the sample arbitrary,
// which is fine for a debug snapshot.
func (m *MemoryTier) Sample(_ context.Context, n int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, n)
	for k := range m.entries {
		if len(keys) >= n {
			break
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Close implements Tier.
func (m *MemoryTier) Close() error { return nil }
