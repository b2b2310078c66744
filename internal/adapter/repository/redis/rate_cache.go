// Package redis provides a redis-backed rate cache for multi-process hosts,
// sharing one short-TTL view of recently observed rates across replicas. It
// implements the same interface as the in-process memory cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/rates"
)

const ratePrefix = "rates:"

// RateCache stores exchange rates as JSON values with a server-side TTL, so
// staleness is enforced by redis expiry instead of client clocks.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRateCache creates a rate cache. A non-positive ttl falls back to the
// same default as the memory cache.
func NewRateCache(client *redis.Client, ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = rates.DefaultCacheTTL
	}

	return &RateCache{client: client, ttl: ttl}
}

type cachedRate struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Rate      decimal.Decimal `json:"rate"`
	Provider  string          `json:"provider"`
	Timestamp time.Time       `json:"timestamp"`
}

// Get retrieves a cached rate. Misses and expired keys return nil.
func (c *RateCache) Get(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	raw, err := c.client.Get(ctx, rateKey(base, quote)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, err
	}

	var cached cachedRate
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}

	return &domain.ExchangeRate{
		Base:      cached.Base,
		Quote:     cached.Quote,
		Rate:      cached.Rate,
		Provider:  cached.Provider,
		Timestamp: cached.Timestamp,
	}, nil
}

// Put stores a rate under the pair's key with the cache TTL.
func (c *RateCache) Put(ctx context.Context, rate *domain.ExchangeRate) error {
	if rate == nil {
		return nil
	}

	raw, err := json.Marshal(cachedRate{
		Base:      rate.Base,
		Quote:     rate.Quote,
		Rate:      rate.Rate,
		Provider:  rate.Provider,
		Timestamp: rate.Timestamp,
	})
	if err != nil {
		return err
	}

	return c.client.Set(ctx, rateKey(rate.Base, rate.Quote), raw, c.ttl).Err()
}

func rateKey(base, quote string) string {
	return ratePrefix + base + ":" + quote
}
