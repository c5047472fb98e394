package youtube

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// ttlCache keeps API responses in memory for a fixed time. Keys look
// like "channel_stats:<id>".
type ttlCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]cacheEntry
	now       func() time.Time
	lastSweep time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func cacheKey(kind, id string) string {
	return kind + ":" + id
}

func (c *ttlCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// set stores value under key. At most once per ttl it also drops every
// expired entry, so keys that are never read again do not pile up.
func (c *ttlCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.ttl {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
		c.lastSweep = now
	}
	c.entries[key] = cacheEntry{value: value, expires: now.Add(c.ttl)}
}
