package varstore

import (
	"container/list"
	"sync"

	"github.com/roach88/varpath/internal/ir"
	"github.com/roach88/varpath/internal/resolve"
)

// cacheEntry is what the store remembers about one path.
type cacheEntry struct {
	gen   uint64 // snapshot generation the location was resolved against
	loc   resolve.Location
	value ir.Value // last value read or written, nil if none yet
}

// lruCache is a fixed-capacity LRU keyed by literal path string.
type lruCache struct {
	capacity int
	mu       sync.Mutex
	items    map[string]*list.Element
	lruList  *list.List
}

type lruItem struct {
	key   string
	entry cacheEntry
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// get returns the entry for key if it belongs to generation gen.
// Entries from older generations are dropped on sight.
func (c *lruCache) get(key string, gen uint64) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return cacheEntry{}, false
	}
	item := elem.Value.(*lruItem)
	if item.entry.gen != gen {
		c.lruList.Remove(elem)
		delete(c.items, key)
		return cacheEntry{}, false
	}
	c.lruList.MoveToFront(elem)
	return item.entry, true
}

// put stores entry under key unless an entry from a newer generation is
// already there.
func (c *lruCache) put(key string, entry cacheEntry) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*lruItem)
		if item.entry.gen > entry.gen {
			return
		}
		item.entry = entry
		c.lruList.MoveToFront(elem)
		return
	}

	elem := c.lruList.PushFront(&lruItem{key: key, entry: entry})
	c.items[key] = elem

	if c.lruList.Len() > c.capacity {
		c.evictOldest()
	}
}

// evictOldest removes the least recently used entry. Caller holds mu.
func (c *lruCache) evictOldest() {
	elem := c.lruList.Back()
	if elem != nil {
		c.lruList.Remove(elem)
		delete(c.items, elem.Value.(*lruItem).key)
	}
}

// purge drops every entry.
func (c *lruCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList.Init()
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}
