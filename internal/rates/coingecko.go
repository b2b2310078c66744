package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
)

const coinGeckoProviderName = "coingecko"

// CoinGecko asset ids for the tracked tokens.
var coinGeckoIDs = map[string]string{
	"XRP":   "ripple",
	"RLUSD": "ripple-usd",
	"USDC":  "usd-coin",
	"USDT":  "tether",
}

var coinGeckoIDsReverse = func() map[string]string {
	m := make(map[string]string, len(coinGeckoIDs))
	for token, id := range coinGeckoIDs {
		m[id] = token
	}
	return m
}()

// Quote currencies CoinGecko's simple price endpoint serves.
var coinGeckoQuotes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"AUD": true, "CAD": true, "CHF": true, "SGD": true,
}

// CoinGeckoProvider prices tokens against fiat via the simple/price endpoint.
// A batch of pairs collapses into one round trip: token ids and target
// currencies are comma-joined into a single query and the nested
// id -> currency -> rate response is fanned back out per requested pair.
type CoinGeckoProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retry   backoff.BackOff
}

// NewCoinGeckoProvider creates a CoinGecko provider. timeout bounds each
// upstream call; the api key is optional (demo tier works without one).
func NewCoinGeckoProvider(baseURL, apiKey string, timeout time.Duration) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (p *CoinGeckoProvider) Name() string { return coinGeckoProviderName }

// SupportsPair implements Provider.
func (p *CoinGeckoProvider) SupportsPair(base, quote string) bool {
	_, ok := coinGeckoIDs[strings.ToUpper(base)]
	return ok && coinGeckoQuotes[strings.ToUpper(quote)]
}

// GetRate implements Provider.
func (p *CoinGeckoProvider) GetRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	result, err := p.GetRates(ctx, []Pair{{Base: base, Quote: quote}})
	if err != nil {
		return nil, err
	}

	rate, ok := result[Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}]
	if !ok {
		return nil, domain.Errorf(domain.KindProviderUnavailable,
			"coingecko returned no rate for %s/%s", base, quote)
	}

	return rate, nil
}

// GetRates implements Provider.
func (p *CoinGeckoProvider) GetRates(ctx context.Context, pairs []Pair) (map[Pair]*domain.ExchangeRate, error) {
	ids := make([]string, 0, len(pairs))
	quotes := make([]string, 0, len(pairs))
	seenIDs := make(map[string]bool)
	seenQuotes := make(map[string]bool)

	for _, pair := range pairs {
		id, ok := coinGeckoIDs[strings.ToUpper(pair.Base)]
		if !ok {
			continue
		}

		if !seenIDs[id] {
			seenIDs[id] = true
			ids = append(ids, id)
		}

		quote := strings.ToLower(pair.Quote)
		if !seenQuotes[quote] {
			seenQuotes[quote] = true
			quotes = append(quotes, quote)
		}
	}

	if len(ids) == 0 {
		return map[Pair]*domain.ExchangeRate{}, nil
	}

	endpoint := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=%s",
		p.baseURL,
		url.QueryEscape(strings.Join(ids, ",")),
		url.QueryEscape(strings.Join(quotes, ",")))

	body, err := p.fetch(ctx, endpoint)
	if err != nil {
		return nil, domain.WrapError(domain.KindProviderUnavailable, "coingecko request failed", err)
	}

	// id -> currency -> rate
	var payload map[string]map[string]json.Number
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.WrapError(domain.KindProviderUnavailable, "coingecko returned malformed response", err)
	}

	now := time.Now().UTC()
	result := make(map[Pair]*domain.ExchangeRate, len(pairs))

	for id, byCurrency := range payload {
		token, ok := coinGeckoIDsReverse[id]
		if !ok {
			continue
		}

		for currency, raw := range byCurrency {
			rate, err := decimal.NewFromString(raw.String())
			if err != nil || rate.LessThanOrEqual(decimal.Zero) {
				continue
			}

			pair := Pair{Base: token, Quote: strings.ToUpper(currency)}
			result[pair] = &domain.ExchangeRate{
				Base:      pair.Base,
				Quote:     pair.Quote,
				Rate:      rate,
				Provider:  coinGeckoProviderName,
				Timestamp: now,
			}
		}
	}

	return result, nil
}

// CheckHealth implements Provider.
func (p *CoinGeckoProvider) CheckHealth(ctx context.Context) error {
	_, err := p.fetch(ctx, p.baseURL+"/api/v3/ping")
	return err
}

// fetch performs one GET with bounded retries on transient failures. Client
// errors are permanent; retrying a 400 only burns the provider budget.
func (p *CoinGeckoProvider) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Set("Accept", "application/json")
		if p.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", p.apiKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("coingecko returned status %d", resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("coingecko returned status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 8 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return body, nil
}
