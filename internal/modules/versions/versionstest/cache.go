package versionstest

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache is an in-memory versions.Cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]string
	// Deletes counts Del calls.
	Deletes int
}

func NewCache() *Cache {
	return &Cache{entries: map[string]string{}}
}

func (c *Cache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *Cache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case string:
		c.entries[key] = v
	case []byte:
		c.entries[key] = string(v)
	default:
		c.entries[key] = fmt.Sprint(v)
	}
	return nil
}

func (c *Cache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deletes++
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

// Has reports whether key is cached.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Purger records purge calls on a channel.
type Purger struct {
	Calls chan struct{}
}

func NewPurger() *Purger {
	return &Purger{Calls: make(chan struct{}, 16)}
}

func (p *Purger) Purge(context.Context) error {
	select {
	case p.Calls <- struct{}{}:
	default:
	}
	return nil
}

// Wait blocks until a purge happened or the timeout elapsed.
func (p *Purger) Wait(timeout time.Duration) bool {
	select {
	case <-p.Calls:
		return true
	case <-time.After(timeout):
		return false
	}
}
