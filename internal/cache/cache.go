// Package cache provides a small in-memory TTL cache keyed by logical query
// signature (e.g. "calendar", "student:Anna"). It is the only state the
// dashboard engine holds between render passes.
package cache

import (
	"sync"
	"time"
)

// entry is a single cached fetch result. Entries are replaced whole; a
// refresh never mutates a stored value in place.
type entry struct {
	value     any
	fetchedAt time.Time
	ttl       time.Duration
}

func (e *entry) live(now time.Time) bool {
	return now.Sub(e.fetchedAt) < e.ttl
}

// Manager owns cache entry lifetime. Each key is independently replaceable
// under one mutex, so concurrent render passes cannot observe a partially
// updated entry.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time // overridable for tests
}

func NewManager() *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// GetOrFetch returns the cached value for key while it is younger than ttl.
// Otherwise it invokes fetch, stores a successful result with a fresh
// timestamp, and returns it.
//
// A failed fetch is not cached: any prior entry for key stays untouched and
// the error is returned so the caller can surface an empty result.
func (m *Manager) GetOrFetch(key string, ttl time.Duration, fetch func() (any, error)) (any, error) {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok && e.live(m.now()) {
		v := e.value
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	// Fetch outside the lock; the webhook round trip can take seconds.
	v, err := fetch()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.entries[key] = &entry{value: v, fetchedAt: m.now(), ttl: ttl}
	m.mu.Unlock()
	return v, nil
}

// Peek returns the stored value for key regardless of freshness. The second
// return reports whether an entry exists at all.
func (m *Manager) Peek(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Invalidate clears the entries for the given keys.
func (m *Manager) Invalidate(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
}

// InvalidateAll clears every entry. Used by the user-triggered refresh.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
}

// Len reports the number of stored entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
