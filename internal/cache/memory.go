package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on Get
// and by Sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a Memory cache. A ttl of zero keeps entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	e := entry{value: append([]byte(nil), value...)}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Cache = (*Memory)(nil)
