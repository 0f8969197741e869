package cache

import (
	"strings"
	"time"

	"orderdesk-backend/pkg/cache"

	gocache "github.com/patrickmn/go-cache"
)

type memoryCache struct {
	store  *gocache.Cache
	prefix string
}

// NewMemoryCache creates a new in-memory cache service
// defaultExpiration: default TTL for items
// cleanupInterval: how often to scan for expired items
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) cache.CacheService {
	return &memoryCache{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Namespace returns a view of svc whose keys live under prefix. Flush on the
// view only drops that namespace.
func Namespace(svc cache.CacheService, prefix string) cache.CacheService {
	if mc, ok := svc.(*memoryCache); ok {
		return &memoryCache{store: mc.store, prefix: mc.prefix + prefix + ":"}
	}
	return svc
}

func (c *memoryCache) Get(key string) (interface{}, bool) {
	return c.store.Get(c.prefix + key)
}

func (c *memoryCache) Set(key string, value interface{}, duration time.Duration) {
	c.store.Set(c.prefix+key, value, duration)
}

func (c *memoryCache) Delete(key string) {
	c.store.Delete(c.prefix + key)
}

func (c *memoryCache) Flush() {
	if c.prefix == "" {
		c.store.Flush()
		return
	}
	for key := range c.store.Items() {
		if strings.HasPrefix(key, c.prefix) {
			c.store.Delete(key)
		}
	}
}
