package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"loganalyzer/internal/port"
)

type CountCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	count     int
	timestamp time.Time
}

func NewCountCache(maxSize int, ttl time.Duration) *CountCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CountCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Key derives the cache key for text counted with model.
func Key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CountCache) Get(key string) (int, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return 0, false
	}

	if time.Since(entry.timestamp) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return 0, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.count, true
}

func (c *CountCache) Put(key string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &cacheEntry{count: count, timestamp: time.Now()}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &cacheEntry{count: count, timestamp: time.Now()}
	c.order = append(c.order, key)
}

func (c *CountCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *CountCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CountCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *CountCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *CountCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Persistent is a durable second level behind the in-memory cache.
type Persistent interface {
	GetCount(key string) (int, bool, error)
	PutCount(key string, count int) error
}

// CachedCounter memoizes a TokenCounter in memory and, optionally, in a
// persistent store. Cache failures never fail a count.
type CachedCounter struct {
	counter port.TokenCounter
	cache   *CountCache
	backing Persistent
	logger  *slog.Logger
}

func NewCachedCounter(counter port.TokenCounter, cache *CountCache, backing Persistent, logger *slog.Logger) *CachedCounter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCounter{
		counter: counter,
		cache:   cache,
		backing: backing,
		logger:  logger,
	}
}

func (c *CachedCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	key := Key(c.counter.Model(), text)
	if n, hit := c.cache.Get(key); hit {
		return n
	}

	if c.backing != nil {
		n, hit, err := c.backing.GetCount(key)
		if err != nil {
			c.logger.Debug("count cache read failed", "error", err)
		} else if hit {
			c.cache.Put(key, n)
			return n
		}
	}

	n := c.counter.Count(text)
	c.cache.Put(key, n)
	if c.backing != nil {
		if err := c.backing.PutCount(key, n); err != nil {
			c.logger.Debug("count cache write failed", "error", err)
		}
	}
	return n
}

func (c *CachedCounter) Model() string {
	return c.counter.Model()
}
