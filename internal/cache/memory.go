package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is a TTL map cache. It satisfies Invalidator for the ledger engine
// and offers Get/Set for read-path consumers living in the same process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// NewMemory creates a Memory cache whose entries expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get retrieves a value, reporting whether it was present and fresh.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// Set stores a value under key.
func (m *Memory) Set(key string, data []byte) {
	m.mu.Lock()
	m.entries[key] = entry{data: data, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()
}

// Invalidate drops the named keys. It never fails.
func (m *Memory) Invalidate(_ context.Context, keys []string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

// CleanExpired removes stale entries and returns how many were dropped.
func (m *Memory) CleanExpired() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	cleaned := 0
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			cleaned++
		}
	}
	return cleaned
}

// Size returns the current number of entries, expired ones included.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
