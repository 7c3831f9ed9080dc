package resilience

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

type cacheEntry struct {
	resp    *Response
	expires time.Time
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// HitRatio returns hits over lookups, or 0 with no lookups.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// ResponseCache is an in-memory TTL cache with LRU eviction past MaxSize.
// Expiry is checked lazily on Get; Cleanup sweeps expired entries.
type ResponseCache struct {
	// mu makes read-then-remove on expiry atomic with Put.
	mu      sync.Mutex
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewResponseCache creates a cache from configuration.
func NewResponseCache(cfg domain.CacheConfig) (*ResponseCache, error) {
	size := cfg.MaxSize
	if size < 1 {
		size = 1
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &ResponseCache{entries: entries, ttl: cfg.TTL, now: time.Now}, nil
}

// TTL returns the default entry lifetime.
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Get returns a fresh entry for the fingerprint.
func (c *ResponseCache) Get(fp string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(fp)
	if ok && c.now().Before(e.expires) {
		c.hits.Add(1)
		return e.resp, true
	}
	if ok {
		c.entries.Remove(fp)
	}
	c.misses.Add(1)
	return nil, false
}

// Put stores a response. A non-positive ttl uses the cache default.
// An existing entry is replaced, never updated in place.
func (c *ResponseCache) Put(fp string, resp *Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if ttl <= 0 {
		return
	}
	expires := c.now().Add(ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(fp, cacheEntry{resp: resp, expires: expires})
}

// Cleanup removes expired entries and returns how many were removed.
func (c *ResponseCache) Cleanup() int {
	now := c.now()
	removed := 0
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.entries.Keys() {
		e, ok := c.entries.Peek(k)
		if ok && !now.Before(e.expires) {
			c.entries.Remove(k)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx ends.
func (c *ResponseCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *ResponseCache) Len() int {
	return c.entries.Len()
}

// Stats returns hit and miss counters.
func (c *ResponseCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.entries.Len()}
}
