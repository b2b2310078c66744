package rates

import (
	"context"
	"sync"
	"time"

	"github.com/iho/railledger/internal/domain"
)

// DefaultCacheTTL bounds how stale a creation-time rate lookup may be.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	rate      *domain.ExchangeRate
	expiresAt time.Time
}

// MemoryCache is a mutex-guarded last-writer-wins TTL map keyed by ordered
// pair. It is the default single-process cache; multi-process hosts swap in
// the redis-backed implementation behind the same interface.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Pair]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a memory cache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &MemoryCache{
		entries: make(map[Pair]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements Cache. Stale or missing entries return nil.
func (c *MemoryCache) Get(_ context.Context, base, quote string) (*domain.ExchangeRate, error) {
	c.mu.RLock()
	entry, ok := c.entries[Pair{Base: base, Quote: quote}]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		cacheMissesTotal.Inc()
		return nil, nil
	}

	cacheHitsTotal.Inc()

	return entry.rate, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, rate *domain.ExchangeRate) error {
	if rate == nil {
		return nil
	}

	c.mu.Lock()
	c.entries[Pair{Base: rate.Base, Quote: rate.Quote}] = cacheEntry{
		rate:      rate,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	return nil
}
