package cache

import (
	"sync"
	"time"
)

// TTLMap is a concurrent in-memory cache with per-key TTL that satisfies Cache.
// - Safe for concurrent use.
// - Optional default TTL applied when Set is called with ttl <= 0.
// - Periodic cleanup to remove expired entries.
type TTLMap struct {
	mu              sync.RWMutex
	data            map[string]*ttlEntry
	defaultTTL      time.Duration
	cleanupInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

type ttlEntry struct {
	value     any
	expiresAt time.Time
	hasExpiry bool
}

// NewTTLMap creates a new TTLMap.
// - defaultTTL is used when Set(key, value, ttl) is called with ttl <= 0
// - cleanupInterval defines how often expired items are purged. If 0, no background cleanup goroutine runs.
func NewTTLMap(defaultTTL, cleanupInterval time.Duration) *TTLMap {
	m := &TTLMap{
		data:            make(map[string]*ttlEntry),
		defaultTTL:      defaultTTL,
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go m.cleanupLoop()
	}

	return m
}

// Close stops the background cleanup goroutine, if any.
func (m *TTLMap) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// Get retrieves a value by key. If the key is expired or not present, returns (nil, false).
func (m *TTLMap) Get(key string) (any, bool) {
	now := time.Now()

	m.mu.RLock()
	entry, ok := m.data[key]
	if ok && entry != nil && (!entry.hasExpiry || now.Before(entry.expiresAt)) {
		m.mu.RUnlock()
		return entry.value, true
	}
	m.mu.RUnlock()

	if ok {
		// remove expired lazily
		m.mu.Lock()
		if cur, exists := m.data[key]; exists && cur != nil && cur.hasExpiry && !now.Before(cur.expiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()
	}

	return nil, false
}

// Set stores a value by key with the provided TTL.
// - ttl <= 0 applies the default TTL.
// - ttl <= 0 and defaultTTL <= 0 results in no expiration.
func (m *TTLMap) Set(key string, value any, ttl time.Duration) error {
	var expiresAt time.Time
	var hasExpiry bool

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > 0 {
		hasExpiry = true
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = &ttlEntry{
		value:     value,
		expiresAt: expiresAt,
		hasExpiry: hasExpiry,
	}
	m.mu.Unlock()

	return nil
}

// Delete removes a key, returning no error for non-existent keys.
func (m *TTLMap) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Has checks whether a key exists and is not expired.
func (m *TTLMap) Has(key string) bool {
	now := time.Now()

	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()

	if !ok || entry == nil {
		return false
	}
	if entry.hasExpiry && !now.Before(entry.expiresAt) {
		m.mu.Lock()
		if cur, exists := m.data[key]; exists && cur != nil && cur.hasExpiry && !now.Before(cur.expiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return false
	}
	return true
}

// Keys returns all keys (non-expired) at the time of calling.
func (m *TTLMap) Keys() []string {
	now := time.Now()

	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k, v := range m.data {
		if v == nil {
			continue
		}
		if v.hasExpiry && !now.Before(v.expiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	return keys
}

// Size returns the number of non-expired entries.
func (m *TTLMap) Size() int {
	now := time.Now()
	count := 0

	m.mu.RLock()
	for _, v := range m.data {
		if v == nil {
			continue
		}
		if v.hasExpiry && !now.Before(v.expiresAt) {
			continue
		}
		count++
	}
	m.mu.RUnlock()

	return count
}

// Clear removes all entries from the cache.
func (m *TTLMap) Clear() error {
	m.mu.Lock()
	m.data = make(map[string]*ttlEntry)
	m.mu.Unlock()
	return nil
}

// Cleanup removes expired entries immediately.
func (m *TTLMap) Cleanup() {
	now := time.Now()
	m.mu.Lock()
	for k, v := range m.data {
		if v == nil {
			delete(m.data, k)
			continue
		}
		if v.hasExpiry && !now.Before(v.expiresAt) {
			delete(m.data, k)
		}
	}
	m.mu.Unlock()
}

func (m *TTLMap) cleanupLoop() {
	t := time.NewTicker(m.cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			m.Cleanup()
		case <-m.stopCh:
			return
		}
	}
}
