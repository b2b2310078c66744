package rates

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/railledger/internal/domain"
)

// Factory orchestrates an ordered provider list with fallback. The first
// provider that supports a pair and succeeds wins; later providers are only
// consulted for pairs the earlier ones could not resolve.
type Factory struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewFactory creates a factory over providers in fallback order.
func NewFactory(providers []Provider, logger zerolog.Logger) *Factory {
	return &Factory{
		providers: providers,
		logger:    logger.With().Str("component", "rate_factory").Logger(),
	}
}

// GetRate resolves a single pair, trying providers in order. It fails only
// when no provider supports the pair or all supporting providers fail.
func (f *Factory) GetRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)

	var lastErr error
	supported := false

	for _, provider := range f.providers {
		if !provider.SupportsPair(base, quote) {
			continue
		}
		supported = true

		start := time.Now()
		rate, err := provider.GetRate(ctx, base, quote)
		providerLatency.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			providerRequestsTotal.WithLabelValues(provider.Name(), "error").Inc()
			f.logger.Warn().
				Err(err).
				Str("provider", provider.Name()).
				Str("pair", base+"/"+quote).
				Msg("provider failed, trying next")
			lastErr = err
			continue
		}

		providerRequestsTotal.WithLabelValues(provider.Name(), "success").Inc()

		return rate, nil
	}

	if !supported {
		return nil, domain.Errorf(domain.KindProviderUnavailable,
			"no provider supports pair %s/%s", base, quote)
	}

	return nil, domain.WrapError(domain.KindProviderUnavailable,
		"all providers failed for "+base+"/"+quote, lastErr)
}

// GetRates resolves a batch with per-pair failure isolation: pairs no
// provider could serve are simply absent from the result, they never abort
// the pairs that did resolve.
func (f *Factory) GetRates(ctx context.Context, pairs []Pair) map[Pair]*domain.ExchangeRate {
	remaining := make([]Pair, 0, len(pairs))
	for _, pair := range pairs {
		remaining = append(remaining, Pair{
			Base:  strings.ToUpper(pair.Base),
			Quote: strings.ToUpper(pair.Quote),
		})
	}

	resolved := make(map[Pair]*domain.ExchangeRate, len(pairs))

	for _, provider := range f.providers {
		if len(remaining) == 0 {
			break
		}

		supported := make([]Pair, 0, len(remaining))
		unsupported := make([]Pair, 0, len(remaining))
		for _, pair := range remaining {
			if provider.SupportsPair(pair.Base, pair.Quote) {
				supported = append(supported, pair)
			} else {
				unsupported = append(unsupported, pair)
			}
		}

		if len(supported) == 0 {
			continue
		}

		start := time.Now()
		batch, err := provider.GetRates(ctx, supported)
		providerLatency.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())

		if err != nil {
			providerRequestsTotal.WithLabelValues(provider.Name(), "error").Inc()
			f.logger.Warn().
				Err(err).
				Str("provider", provider.Name()).
				Int("pairs", len(supported)).
				Msg("provider batch failed, falling through")
			remaining = append(unsupported, supported...)
			continue
		}

		providerRequestsTotal.WithLabelValues(provider.Name(), "success").Inc()

		missed := unsupported
		for _, pair := range supported {
			if rate, ok := batch[pair]; ok {
				resolved[pair] = rate
			} else {
				missed = append(missed, pair)
			}
		}

		remaining = missed
	}

	for _, pair := range remaining {
		f.logger.Warn().Str("pair", pair.String()).Msg("no provider resolved pair")
	}

	return resolved
}

// ProviderHealth is one provider's probe result.
type ProviderHealth struct {
	Provider string
	Healthy  bool
	Error    string
}

// CheckHealth probes every provider independently. Health is operational
// visibility only; request routing never consults it.
func (f *Factory) CheckHealth(ctx context.Context) []ProviderHealth {
	results := make([]ProviderHealth, 0, len(f.providers))

	for _, provider := range f.providers {
		health := ProviderHealth{Provider: provider.Name(), Healthy: true}
		if err := provider.CheckHealth(ctx); err != nil {
			health.Healthy = false
			health.Error = err.Error()
		}
		results = append(results, health)
	}

	return results
}
