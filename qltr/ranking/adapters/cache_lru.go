package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
)

// LRUCache is a bounded least-recently-used cache with per-entry TTL.
type LRUCache[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*cacheItem[V]
	head     *cacheItem[V]
	tail     *cacheItem[V]
	now      func() time.Time
}

type cacheItem[V any] struct {
	key   string
	value V
	ttl   time.Time
	prev  *cacheItem[V]
	next  *cacheItem[V]
}

// NewLRUCache creates a new LRU cache with the specified capacity.
func NewLRUCache[V any](capacity int) *LRUCache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache[V]{
		capacity: capacity,
		items:    make(map[string]*cacheItem[V]),
		now:      time.Now,
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRUCache[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	item, exists := c.items[key]
	if !exists {
		return zero, false
	}

	if c.now().After(item.ttl) {
		c.removeItem(item)
		delete(c.items, key)
		return zero, false
	}

	c.moveToFront(item)
	return item.value, true
}

// Set stores a value with a TTL in seconds.
func (c *LRUCache[V]) Set(ctx context.Context, key string, value V, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl := c.now().Add(time.Duration(ttlSeconds) * time.Second)

	if item, exists := c.items[key]; exists {
		item.value = value
		item.ttl = ttl
		c.moveToFront(item)
		return nil
	}

	item := &cacheItem[V]{key: key, value: value, ttl: ttl}
	c.addToFront(item)
	c.items[key] = item

	if len(c.items) > c.capacity {
		c.evictLRU()
	}
	return nil
}

// Delete removes a key from the cache.
func (c *LRUCache[V]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil
	}
	c.removeItem(item)
	delete(c.items, key)
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[V]) moveToFront(item *cacheItem[V]) {
	if c.head == item {
		return
	}
	c.removeItem(item)
	c.addToFront(item)
}

func (c *LRUCache[V]) addToFront(item *cacheItem[V]) {
	item.next = c.head
	item.prev = nil

	if c.head != nil {
		c.head.prev = item
	}
	c.head = item

	if c.tail == nil {
		c.tail = item
	}
}

func (c *LRUCache[V]) removeItem(item *cacheItem[V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.head = item.next
	}

	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}

	item.prev = nil
	item.next = nil
}

func (c *LRUCache[V]) evictLRU() {
	if c.tail == nil {
		return
	}
	item := c.tail
	c.removeItem(item)
	delete(c.items, item.key)
}

// Ensure LRUCache implements the Cache interface.
var _ ports.Cache[ports.Suggestions] = (*LRUCache[ports.Suggestions])(nil)
