package indexer

import (
	"container/list"
	"context"
	"os"
	"sync"
)

// Cache keeps built chapter indexes keyed by document path so repeat
// questions against the same chapter skip the rebuild. An entry goes stale
// when the file's mtime or size changes and is rebuilt on next access.
// Least recently used entries are evicted at capacity.
type Cache struct {
	indexer  *Indexer
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
}

type cacheSlot struct {
	key   string
	index *ChapterIndex
}

// NewCache creates a cache over indexer holding up to capacity indexes.
func NewCache(indexer *Indexer, capacity int) *Cache {
	if capacity <= 0 {
		capacity = 16
	}
	return &Cache{
		indexer:  indexer,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns an index for the chapter at path, building one if the cache
// has none or the file changed since the cached build. The cache owns
// returned indexes; callers must not close them.
func (c *Cache) Get(ctx context.Context, path string) (*ChapterIndex, error) {
	if info, err := os.Stat(path); err == nil {
		c.mu.Lock()
		if elem, ok := c.entries[path]; ok {
			slot := elem.Value.(*cacheSlot)
			if slot.index.modTime.Equal(info.ModTime()) && slot.index.size == info.Size() {
				c.lru.MoveToFront(elem)
				c.mu.Unlock()
				return slot.index, nil
			}
		}
		c.mu.Unlock()
	}

	built, err := c.indexer.Build(ctx, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[path]; ok {
		slot := elem.Value.(*cacheSlot)
		_ = slot.index.Close()
		slot.index = built
		c.lru.MoveToFront(elem)
		return built, nil
	}
	elem := c.lru.PushFront(&cacheSlot{key: path, index: built})
	c.entries[path] = elem
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			slot := oldest.Value.(*cacheSlot)
			c.lru.Remove(oldest)
			delete(c.entries, slot.key)
			_ = slot.index.Close()
		}
	}
	return built, nil
}

// Invalidate drops the cached index for path, if any.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[path]; ok {
		slot := elem.Value.(*cacheSlot)
		c.lru.Remove(elem)
		delete(c.entries, path)
		_ = slot.index.Close()
	}
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close drops all cached indexes.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, elem := range c.entries {
		_ = elem.Value.(*cacheSlot).index.Close()
	}
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	return nil
}
