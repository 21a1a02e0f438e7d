package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// responseCache memoizes successful provider responses for identical
// requests within a TTL, so repeated prompts inside one audit don't burn
// rate limit. Hits are reported through the explicit CacheHit flag on the
// result record.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time // test hook
}

type cacheEntry struct {
	text    string
	expires time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(req Request) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.3f|%s", req.Provider, req.Model, req.Temperature, req.Prompt)))
	return hex.EncodeToString(sum[:])
}

func (c *responseCache) get(req Request) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(req)]
	if !ok || c.now().After(e.expires) {
		delete(c.entries, cacheKey(req))
		return "", false
	}
	return e.text, true
}

func (c *responseCache) set(req Request, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(req)] = cacheEntry{text: text, expires: c.now().Add(c.ttl)}
}
