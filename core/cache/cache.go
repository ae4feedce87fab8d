// Package cache provides LRU caching for built book structures. A cache is
// an explicitly constructed value owned by the caller — an arena passed into
// whatever needs it — never a package-level singleton, so the builder,
// resolver, and projector stay pure and independently testable.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/FocuswithJustin/CedarAlign/core/structure"
)

// Cache is a generic LRU cache interface.
type Cache[K comparable, V any] interface {
	// Get retrieves a value from the cache.
	Get(key K) (V, bool)

	// Put stores a value in the cache.
	Put(key K, value V)

	// Remove removes a value from the cache.
	Remove(key K)

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called when an entry is evicted.
	OnEvict func(key, value interface{})
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize: 100,
		TTL:     0,
		OnEvict: nil,
	}
}

// entry represents a cache entry.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.RWMutex
	config    Config
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}

	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	// Check if expired
	e := ent.Value.(*entry[K, V])
	if c.config.TTL > 0 && time.Now().After(e.expiresAt) {
		c.removeElement(ent)
		c.stats.Misses++
		var zero V
		return zero, false
	}

	// Move to front (most recently used)
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return e.value, true
}

// Put stores a value in the cache.
func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if entry already exists
	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[K, V])
		e.value = value
		if c.config.TTL > 0 {
			e.expiresAt = time.Now().Add(c.config.TTL)
		}
		return
	}

	// Add new entry
	e := &entry[K, V]{
		key:   key,
		value: value,
	}
	if c.config.TTL > 0 {
		e.expiresAt = time.Now().Add(c.config.TTL)
	}

	ent := c.evictList.PushFront(e)
	c.entries[key] = ent

	// Evict oldest entry if necessary
	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		c.removeOldest()
	}
}

// Remove removes a value from the cache.
func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.removeElement(ent)
	}
}

// Clear removes all entries from the cache.
func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
	c.stats.Size = 0
}

// Len returns the number of entries in the cache.
func (c *lruCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictList.Len()
}

// Stats returns cache statistics.
func (c *lruCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// removeOldest removes the oldest entry from the cache.
func (c *lruCache[K, V]) removeOldest() {
	ent := c.evictList.Back()
	if ent != nil {
		c.removeElement(ent)
		c.stats.Evictions++
	}
}

// removeElement removes an element from the cache.
func (c *lruCache[K, V]) removeElement(ent *list.Element) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// StructureKey identifies a built structure: one (resource, book) pair.
type StructureKey struct {
	// Resource is the resource id (e.g., "ult", "ugnt").
	Resource string

	// Book is the USFM book code (e.g., "3JN").
	Book string
}

// StructureCache is a specialized cache for built book structures, so the
// structural builder need not re-run on every load. Cached books are
// immutable by contract; callers must not modify what they get back.
type StructureCache struct {
	cache Cache[StructureKey, *structure.Book]
}

// NewStructureCache creates a new structure cache.
func NewStructureCache(config Config) *StructureCache {
	return &StructureCache{
		cache: NewLRUCache[StructureKey, *structure.Book](config),
	}
}

// NewDefaultStructureCache creates a structure cache with a size suited to
// book structures, which are large.
func NewDefaultStructureCache() *StructureCache {
	config := DefaultConfig()
	config.MaxSize = 50
	return NewStructureCache(config)
}

// Get retrieves a built book for the (resource, book) pair.
func (c *StructureCache) Get(resource, book string) (*structure.Book, bool) {
	return c.cache.Get(StructureKey{Resource: resource, Book: book})
}

// Put stores a built book.
func (c *StructureCache) Put(resource, book string, b *structure.Book) {
	c.cache.Put(StructureKey{Resource: resource, Book: book}, b)
}

// Remove removes a built book.
func (c *StructureCache) Remove(resource, book string) {
	c.cache.Remove(StructureKey{Resource: resource, Book: book})
}

// Clear removes all cached structures.
func (c *StructureCache) Clear() {
	c.cache.Clear()
}

// Len returns the number of cached structures.
func (c *StructureCache) Len() int {
	return c.cache.Len()
}

// Stats returns cache statistics.
func (c *StructureCache) Stats() Stats {
	return c.cache.Stats()
}
