package search

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// queryCache holds recent responses keyed by the full query. Entries
// expire after the TTL; inserting beyond capacity evicts oldest first.
type queryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

type queryCacheEntry struct {
	key        string
	response   Response
	insertedAt time.Time
}

func newQueryCache(capacity int, ttl time.Duration) *queryCache {
	if capacity < 1 {
		capacity = 1
	}
	return &queryCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// cacheKey fingerprints the query including filters and options.
func cacheKey(q Query) string {
	data, err := json.Marshal(q)
	if err != nil {
		return q.Text + "|" + q.ImagePath
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *queryCache) Get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Response{}, false
	}
	entry := el.Value.(*queryCacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.insertedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return Response{}, false
	}
	return entry.response, true
}

func (c *queryCache) Put(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*queryCacheEntry)
		entry.response = resp
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
		delete(c.entries, oldest.Value.(*queryCacheEntry).key)
	}

	el := c.order.PushBack(&queryCacheEntry{key: key, response: resp, insertedAt: c.now()})
	c.entries[key] = el
}
