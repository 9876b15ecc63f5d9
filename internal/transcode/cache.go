package transcode

import (
	"fmt"
	"sync"
	"time"

	ttlcache "github.com/FloatTech/ttl"
)

// ResultCache remembers processing results keyed by path and source
// fingerprint so re-enqueueing an unchanged file within a session does
// not repeat the work. It is an explicit, bounded, TTL-expiring object
// owned by its caller; there is no module-level singleton, so tests can
// construct isolated instances.
type ResultCache struct {
	mu        sync.Mutex
	inner     *ttlcache.Cache[string, *ProcessedMedia]
	ttl       time.Duration
	max       int
	sets      int
	lastReset time.Time
}

// NewResultCache creates a cache holding at most maxEntries results,
// each expiring after ttl.
func NewResultCache(ttl time.Duration, maxEntries int) *ResultCache {
	return &ResultCache{
		inner:     ttlcache.NewCache[string, *ProcessedMedia](ttl),
		ttl:       ttl,
		max:       maxEntries,
		lastReset: time.Now(),
	}
}

// Key builds a cache key from the source path and fingerprint.
func (c *ResultCache) Key(path string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s|%d|%d", path, size, modTime.UnixNano())
}

// Get returns a cached result or nil.
func (c *ResultCache) Get(key string) *ProcessedMedia {
	return c.inner.Get(key)
}

// Put stores a result. Once the size bound is reached new entries are
// dropped until the TTL window rolls over; the bound caps memory, it is
// not an eviction policy.
func (c *ResultCache) Put(key string, pm *ProcessedMedia) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastReset) > c.ttl {
		c.sets = 0
		c.lastReset = time.Now()
	}
	if c.max > 0 && c.sets >= c.max {
		return
	}
	c.sets++
	c.inner.Set(key, pm)
}

// Invalidate drops a key. A retry must re-run processing rather than be
// served a stale result.
func (c *ResultCache) Invalidate(key string) {
	c.inner.Delete(key)
}
