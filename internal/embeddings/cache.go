package embeddings

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry is one cached vector keyed by content fingerprint.
type cacheEntry struct {
	key        string
	vector     []float32
	insertedAt time.Time
}

// vectorCache is a fixed-capacity fingerprint -> vector cache. Entries
// past their TTL read as misses and are purged; inserting beyond
// capacity evicts the oldest entry first.
type vectorCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = oldest insertion
	now      func() time.Time
}

func newVectorCache(capacity int, ttl time.Duration) *vectorCache {
	if capacity < 1 {
		capacity = 1
	}
	return &vectorCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached vector for key. Expired entries read as
// misses but stay resident so GetStale can still serve them; capacity
// eviction reclaims them eventually.
func (c *vectorCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.insertedAt) > c.ttl {
		return nil, false
	}
	return entry.vector, true
}

// GetStale returns the cached vector even if it has expired. Used only
// by the cache-only degraded fallback.
func (c *vectorCache) GetStale(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).vector, true
}

// Put inserts or refreshes the vector for key, evicting the oldest
// entry when the cache is full.
func (c *vectorCache) Put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.vector = vector
		entry.insertedAt = c.now()
		c.order.MoveToBack(el)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	el := c.order.PushBack(&cacheEntry{key: key, vector: vector, insertedAt: c.now()})
	c.entries[key] = el
}

// Len returns the number of cached entries.
func (c *vectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
