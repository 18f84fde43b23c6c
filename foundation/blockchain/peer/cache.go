package peer

import (
	"container/list"
	"sync"
)

// Cache is a bounded set of recently seen gossip ids. When the
// capacity is exceeded the oldest entry is evicted, so memory stays
// flat no matter how long the node runs.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

// NewCache constructs a cache that holds at most capacity ids.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}

	return &Cache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// MarkSeen records the id and reports whether it was newly seen. An id
// already present is refreshed to most recent and reported as seen.
func (c *Cache) MarkSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.index[id]; exists {
		c.order.MoveToBack(elem)
		return false
	}

	c.index[id] = c.order.PushBack(id)

	if c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(string))
	}

	return true
}

// Seen reports whether the id is currently in the cache.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.index[id]
	return exists
}

// Len returns the number of ids currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}
