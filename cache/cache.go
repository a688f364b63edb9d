// Package cache keeps recently scraped pages in memory so repeated scrapes
// of the same URL can skip rendering.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/crawlkit/models"
)

// sweepInterval is how often expired entries are purged.
const sweepInterval = 5 * time.Minute

// entry holds a cached page with its creation timestamp.
type entry struct {
	page      models.PageRecord
	createdAt time.Time
}

// Cache is an in-memory cache of scraped pages. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Cache holding at most maxEntries pages. A background
// goroutine evicts entries older than ttl until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop(sweepInterval)
	return c
}

// Key generates a cache key from the normalized URL, the output mode and the
// segmentation strategy.
func Key(url string, mode models.Mode, strategy string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(mode))
	h.Write([]byte("|"))
	h.Write([]byte(strategy))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached page if it exists and is younger than maxAge.
// If maxAge <= 0, no lookup is performed.
func (c *Cache) Get(key string, maxAge time.Duration) (models.PageRecord, bool) {
	if maxAge <= 0 {
		return models.PageRecord{}, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > maxAge {
		return models.PageRecord{}, false
	}
	return e.page, true
}

// Set stores a page. Failed pages are not cached. If the cache is at
// capacity, a random entry is evicted to make room.
func (c *Cache) Set(key string, page models.PageRecord) {
	if page.Failed() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		// Map iteration order is random.
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		page:      page,
		createdAt: time.Now(),
	}
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the background sweep.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

// sweep evicts entries created before now minus the TTL.
func (c *Cache) sweep(now time.Time) {
	cutoff := now.Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
