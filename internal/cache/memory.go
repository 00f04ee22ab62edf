package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 1024

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a bounded LRU keyed by string. Expired entries are dropped
// when read; there is no background sweeper. When full, the least recently
// used entry is evicted.
type MemoryStore struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore creates an LRU holding at most maxEntries values.
// If maxEntries <= 0, a default of 1024 is used.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryStore{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves a value and marks it as recently used.
func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}

	entry := el.Value.(*memoryEntry)
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(el)
		return nil, false, nil
	}

	c.order.MoveToFront(el)
	return entry.value, true, nil
}

// Set stores value with ttl, replacing any previous entry for key.
// A non-positive ttl removes the key.
func (c *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		if el, ok := c.items[key]; ok {
			c.removeElement(el)
		}
		return nil
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	expiresAt := c.now().Add(ttl)

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = valueCopy
		entry.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return nil
	}

	c.items[key] = c.order.PushFront(&memoryEntry{
		key:       key,
		value:     valueCopy,
		expiresAt: expiresAt,
	})

	for c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Back())
	}

	return nil
}

func (c *MemoryStore) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*memoryEntry).key)
}

// Len returns the number of items currently held, expired or not.
func (c *MemoryStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
