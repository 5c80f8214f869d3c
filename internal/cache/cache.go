package cache

import (
	"sync"
	"time"
)

// TTL is a small in-memory cache for read-mostly lookups. Entries expire
// lazily on access; Purge drops everything that is already stale.
type TTL struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]entry
}

type entry struct {
	val any
	exp time.Time
}

func New(ttl time.Duration) *TTL {
	return &TTL{ttl: ttl, items: make(map[string]entry)}
}

func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.exp) {
		delete(c.items, key)
		return nil, false
	}
	return e.val, true
}

func (c *TTL) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{val: val, exp: time.Now().Add(c.ttl)}
}

func (c *TTL) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTL) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.items {
		if now.After(e.exp) {
			delete(c.items, k)
		}
	}
}
