package cache

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Memory is the in-process tier: an LRU bounded by entry count and total
// entry bytes. A zero bound disables that limit.
type Memory struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, Entry]
	maxBytes int64
	bytes    int64

	// purging suppresses eviction accounting during Purge.
	purging bool
	onEvict func(key string, e Entry)
}

// NewMemory creates a memory tier. onEvict, if set, is called with the lock
// held for every entry dropped to honour a bound.
func NewMemory(maxEntries int, maxBytes int64, onEvict func(key string, e Entry)) *Memory {
	if maxEntries <= 0 {
		maxEntries = math.MaxInt
	}
	m := &Memory{maxBytes: maxBytes, onEvict: onEvict}

	// NewLRU only fails for a non-positive size.
	m.lru, _ = simplelru.NewLRU[string, Entry](maxEntries, m.evicted)
	return m
}

func (m *Memory) evicted(key string, e Entry) {
	m.bytes -= int64(e.Size())
	if !m.purging && m.onEvict != nil {
		m.onEvict(key, e)
	}
}

// Get returns the entry for key and marks it recently used.
func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Get(key)
}

// Peek returns the entry for key without touching recency.
func (m *Memory) Peek(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Peek(key)
}

// Contains reports whether key is present without touching recency.
func (m *Memory) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Contains(key)
}

// Add stores e under key, replacing any previous entry, then evicts least
// recently used entries until the byte bound holds. An entry larger than
// the byte bound on its own is still kept so the latest retrieval is always
// readable.
func (m *Memory) Add(key string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.lru.Peek(key); ok {
		m.bytes -= int64(old.Size())
	}
	m.lru.Add(key, e)
	m.bytes += int64(e.Size())

	if m.maxBytes <= 0 {
		return
	}
	for m.bytes > m.maxBytes && m.lru.Len() > 1 {
		oldestKey, _, ok := m.lru.GetOldest()
		if !ok || oldestKey == key {
			break
		}
		m.lru.RemoveOldest()
	}
}

// Remove drops key. It is not counted as an eviction.
func (m *Memory) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purging = true
	defer func() { m.purging = false }()
	return m.lru.Remove(key)
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purging = true
	m.lru.Purge()
	m.purging = false
	m.bytes = 0
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Bytes returns the summed size of all entries.
func (m *Memory) Bytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes
}

// Keys returns keys from oldest to newest.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Keys()
}
