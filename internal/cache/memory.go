package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a single cached value. Zero ExpiresAt means no expiration.
type entry struct {
	Value     string
	ExpiresAt time.Time
}

func (e entry) isExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return now.After(e.ExpiresAt)
}

// MemoryKV is a concurrency-safe in-process KV.
// Expired keys are dropped lazily on Get and in bulk by RemoveExpired.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return "", ErrMiss
	}

	if e.isExpired(m.now()) {
		m.mu.Lock()
		// re-check, a writer may have refreshed it
		if cur, ok := m.data[key]; ok && cur.isExpired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return "", ErrMiss
	}
	return e.Value, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// RemoveExpired deletes every expired key and returns how many were removed.
func (m *MemoryKV) RemoveExpired() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.data {
		if e.isExpired(now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

// Len counts stored keys, expired or not.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
