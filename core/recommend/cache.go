package recommend

import (
	"container/list"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// CacheEntry is a memoized Result and the time it was stored.
type CacheEntry struct {
	Data      Result
	Timestamp time.Time
}

// CacheStats tracks cache performance.
type CacheStats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	TTL       string  `json:"ttl"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

type cacheItem struct {
	key   string
	entry CacheEntry
}

// resultCache is a bounded LRU of recommendation results.
// Entries older than ttl are treated as absent and removed when read.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	ll    *list.List // front is the most recently used
	items map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

func newResultCache(capacity int, ttl time.Duration, now func() time.Time) *resultCache {
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// cacheKey builds the memoization key of a request: recommendations_{userId}_{json(options)}.
func cacheKey(userID string, opts Options) string {
	data, err := json.Marshal(opts)
	if err != nil {
		data = []byte("{}")
	}
	return "recommendations_" + userID + "_" + string(data)
}

func (c *resultCache) expired(entry CacheEntry) bool {
	return c.now().Sub(entry.Timestamp) > c.ttl
}

// Get returns the entry stored under key, if present and fresh.
func (c *resultCache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return CacheEntry{}, false
	}
	item := el.Value.(*cacheItem)
	if c.expired(item.entry) {
		c.remove(el)
		c.misses++
		return CacheEntry{}, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	return item.entry, true
}

// Set stores data under key, overwriting any previous entry.
// The least recently used entry is evicted once capacity is exceeded.
func (c *resultCache) Set(key string, data Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := CacheEntry{Data: data, Timestamp: c.now()}
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheItem).entry = entry
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cacheItem{key: key, entry: entry})
	for c.ll.Len() > c.capacity {
		c.remove(c.ll.Back())
		c.evictions++
	}
}

// PurgeExpired removes every stale entry and returns how many were removed.
func (c *resultCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if c.expired(el.Value.(*cacheItem).entry) {
			c.remove(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *resultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *resultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := CacheStats{
		Size:      c.ll.Len(),
		Capacity:  c.capacity,
		TTL:       c.ttl.String(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = round3(float64(c.hits) / float64(total))
	}
	return st
}

func (c *resultCache) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheItem).key)
}
