// Package cache provides a size-bounded, TTL-aware key/value store with
// strict LRU eviction. It is shared by concurrent scan workers, so every
// operation runs under one mutex.
package cache

import (
	"bytes"
	"encoding/gob"
	"sync"
	"time"
)

const (
	// DefaultMaxBytes bounds the cache at 100 MB unless configured otherwise.
	DefaultMaxBytes = 100 * 1024 * 1024
	// DefaultTTL is the entry validity window applied by Set.
	DefaultTTL = 300 * time.Second
	// FallbackEntrySize is charged when a value cannot be size-estimated.
	FallbackEntrySize = 1024
)

// entry is one cached value plus the recency-list links that track it.
type entry[K comparable, V any] struct {
	key       K
	value     V
	createdAt time.Time
	ttl       time.Duration
	size      int64

	// prev points toward more recently used entries, next toward less.
	prev, next *entry[K, V]
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Cache is a generic LRU cache bounded by estimated byte size.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head, tail *entry[K, V] // head is most recently used
	totalBytes int64
	maxBytes   int64
	defaultTTL time.Duration

	now func() time.Time // swapped out by tests
}

// New creates a cache bounded by maxBytes with the given default TTL.
// Non-positive arguments fall back to the package defaults.
func New[K comparable, V any](maxBytes int64, defaultTTL time.Duration) *Cache[K, V] {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache[K, V]{
		entries:    make(map[K]*entry[K, V]),
		maxBytes:   maxBytes,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the value for key if present and unexpired. An expired entry
// is evicted on the spot and reported as a miss. A hit promotes the key to
// most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		c.remove(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Set inserts or replaces the entry for key using the default TTL.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL inserts or replaces the entry for key with an explicit TTL.
// Byte accounting uses a serialized-size estimate; estimation failure
// charges FallbackEntrySize instead of failing the call.
func (c *Cache[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	size := estimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.remove(old)
	}
	e := &entry[K, V]{
		key:       key,
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
		size:      size,
	}
	c.entries[key] = e
	c.pushFront(e)
	c.totalBytes += size

	c.evict()
}

// Invalidate removes the entry for key if present.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*entry[K, V])
	c.head, c.tail = nil, nil
	c.totalBytes = 0
}

// Size returns the running byte total of live entries.
func (c *Cache[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// Items returns a snapshot map of all unexpired entries, for persistence.
// It does not touch recency order.
func (c *Cache[K, V]) Items() map[K]V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	items := make(map[K]V, len(c.entries))
	for key, e := range c.entries {
		if e.expired(now) {
			continue
		}
		items[key] = e.value
	}
	return items
}

// Count returns the number of live entries.
func (c *Cache[K, V]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict removes least-recently-used entries, one at a time, until the byte
// total fits under maxBytes or the recency list is empty. Caller holds mu.
func (c *Cache[K, V]) evict() {
	for c.totalBytes > c.maxBytes && c.tail != nil {
		c.remove(c.tail)
	}
}

// remove unlinks e and settles its byte accounting. Caller holds mu.
func (c *Cache[K, V]) remove(e *entry[K, V]) {
	c.unlink(e)
	delete(c.entries, e.key)
	c.totalBytes -= e.size
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

// estimateSize gob-encodes v to approximate its in-memory footprint.
// Values gob cannot encode are charged the fixed fallback size.
func estimateSize(v any) int64 {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return FallbackEntrySize
	}
	return int64(buf.Len())
}
