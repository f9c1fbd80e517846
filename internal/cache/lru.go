package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry represents a cache entry with value and metadata.
type entry[V any] struct {
	key    string
	value  V
	size   int64
	stored time.Time
}

// LRU is a thread-safe least-recently-used cache with item, size and age
// limits. Any limit may be zero to disable it.
type LRU[V any] struct {
	mu           sync.Mutex
	maxItems     int
	maxSizeBytes int64
	ttl          time.Duration
	now          func() time.Time
	currentSize  int64
	items        map[string]*list.Element
	order        *list.List

	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// NewLRU creates a new LRU cache with the given limits.
func NewLRU[V any](maxItems int, maxSizeBytes int64, ttl time.Duration) *LRU[V] {
	return &LRU[V]{
		maxItems:     maxItems,
		maxSizeBytes: maxSizeBytes,
		ttl:          ttl,
		now:          time.Now,
		items:        make(map[string]*list.Element),
		order:        list.New(),
	}
}

// Get returns the value for key, counting a miss for absent or expired
// entries. Expired entries are dropped.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	e := elem.Value.(*entry[V])
	if c.ttl > 0 && c.now().Sub(e.stored) > c.ttl {
		c.removeElement(elem)
		c.expirations++
		c.misses++
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Put adds or replaces key. size is the approximate value size in bytes.
func (c *LRU[V]) Put(key string, value V, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		e := elem.Value.(*entry[V])
		c.currentSize += size - e.size
		e.value = value
		e.size = size
		e.stored = c.now()
		c.evict()
		return
	}

	elem := c.order.PushFront(&entry[V]{key: key, value: value, size: size, stored: c.now()})
	c.items[key] = elem
	c.currentSize += size

	c.evict()
}

// evict removes entries until the cache is within limits. A lone entry
// larger than maxSizeBytes is kept.
func (c *LRU[V]) evict() {
	for c.order.Len() > 0 {
		over := c.maxItems > 0 && c.order.Len() > c.maxItems
		if c.maxSizeBytes > 0 && c.currentSize > c.maxSizeBytes && c.order.Len() > 1 {
			over = true
		}
		if !over {
			return
		}
		c.removeElement(c.order.Back())
		c.evictions++
	}
}

func (c *LRU[V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	e := elem.Value.(*entry[V])
	delete(c.items, e.key)
	c.currentSize -= e.size
}

// Delete removes a key from the cache.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return true
	}
	return false
}

// Clear removes all entries. Counters are kept.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.currentSize = 0
}

func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Size returns the total size of cached entries.
func (c *LRU[V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Items       int     `json:"items"`
	Size        int64   `json:"size"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	HitRate     float64 `json:"hitRate"`
}

func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Items:       c.order.Len(),
		Size:        c.currentSize,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		HitRate:     hitRate,
	}
}

// ResetStats zeroes the hit, miss, eviction and expiration counters.
func (c *LRU[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions, c.expirations = 0, 0, 0, 0
}
