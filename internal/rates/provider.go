package rates

import (
	"context"

	"github.com/iho/railledger/internal/domain"
)

// Pair is an ordered (base, quote) currency pair.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Provider is a pluggable source of live exchange rates. Implementations
// declare which pairs they can serve; the factory never sends a provider a
// pair it does not support.
type Provider interface {
	Name() string
	SupportsPair(base, quote string) bool
	GetRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
	// GetRates resolves a batch in as few upstream round trips as the
	// provider's API allows. Pairs that fail individually are absent from
	// the result; the error is reserved for whole-call failures.
	GetRates(ctx context.Context, pairs []Pair) (map[Pair]*domain.ExchangeRate, error)
	CheckHealth(ctx context.Context) error
}

// Cache is a short-TTL store of recently observed rates. It serves only
// non-binding, latency-sensitive lookups; settlement-time rates always
// bypass it. Get returns nil on miss or stale entry.
type Cache interface {
	Get(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
	Put(ctx context.Context, rate *domain.ExchangeRate) error
}
