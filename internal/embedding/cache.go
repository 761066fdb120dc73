package embedding

import (
	"container/list"
	"sync"
)

// EmbeddingCache memoizes vectors by exact input text. Chapter names and
// chunk texts repeat across questions, so a hit skips the model entirely.
// Least recently used entries are evicted at capacity.
type EmbeddingCache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
}

type cachedVec struct {
	text string
	vec  []float32
}

// NewEmbeddingCache creates a cache holding up to capacity vectors.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached vector for key, marking it recently used.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cachedVec).vec, true
}

// Set stores the vector for key. At capacity the least recently used
// entry is dropped to make room.
func (c *EmbeddingCache) Set(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cachedVec).vec = vec
		c.lru.MoveToFront(elem)
		return
	}
	c.entries[key] = c.lru.PushFront(&cachedVec{text: key, vec: vec})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cachedVec).text)
		}
	}
}
