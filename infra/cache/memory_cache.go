package cache

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/usdledger/pkg/cache"
)

type cacheEntry struct {
	resp      *cache.Response
	expiresAt time.Time
}

// MemoryCache keeps responses in process memory. It serves single-instance
// deployments and tests.
type MemoryCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache starts a janitor that evicts expired entries every interval.
func NewMemoryCache(interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*cacheEntry),
		stop:    make(chan struct{}),
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go c.cleanup(interval)
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (*cache.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	return e.resp, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, resp *cache.Response, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{resp: resp, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Close stops the janitor.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

var _ cache.ResponseCache = (*MemoryCache)(nil)
