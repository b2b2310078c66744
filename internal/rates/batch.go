package rates

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iho/railledger/internal/domain"
)

// BatchFetcher collapses the fixed set of tracked tokens into one factory
// batch call instead of N sequential single-pair requests. This is the core
// latency optimization on the payment-link creation path.
type BatchFetcher struct {
	factory *Factory
	logger  zerolog.Logger
}

// NewBatchFetcher creates a batch fetcher over the factory.
func NewBatchFetcher(factory *Factory, logger zerolog.Logger) *BatchFetcher {
	return &BatchFetcher{
		factory: factory,
		logger:  logger.With().Str("component", "batch_fetcher").Logger(),
	}
}

// FetchTrackedTokenRates resolves one rate per tracked token against the
// quote currency in a single provider round trip where possible. Tokens that
// fail are absent from the result; one failing token never blocks the rest.
func (f *BatchFetcher) FetchTrackedTokenRates(ctx context.Context, quote string) map[domain.TokenType]*domain.ExchangeRate {
	pairs := make([]Pair, 0, len(domain.TrackedTokens))
	for _, token := range domain.TrackedTokens {
		pairs = append(pairs, Pair{Base: string(token), Quote: quote})
	}

	resolved := f.factory.GetRates(ctx, pairs)

	result := make(map[domain.TokenType]*domain.ExchangeRate, len(resolved))
	for _, token := range domain.TrackedTokens {
		pair := Pair{Base: string(token), Quote: quote}
		if rate, ok := resolved[pair]; ok {
			result[token] = rate
		} else {
			f.logger.Warn().
				Str("token", string(token)).
				Str("quote", quote).
				Msg("no rate resolved for tracked token")
		}
	}

	return result
}
