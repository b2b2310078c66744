package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
)

const frankfurterProviderName = "frankfurter"

var isoCurrencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// FrankfurterProvider serves fiat/fiat pairs from the Frankfurter reference
// rate API. It is the fallback behind CoinGecko for invoice-currency
// conversions and the primary source for plain fiat pairs.
type FrankfurterProvider struct {
	baseURL string
	client  *http.Client
}

// NewFrankfurterProvider creates a Frankfurter provider.
func NewFrankfurterProvider(baseURL string, timeout time.Duration) *FrankfurterProvider {
	return &FrankfurterProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (p *FrankfurterProvider) Name() string { return frankfurterProviderName }

// SupportsPair implements Provider.
func (p *FrankfurterProvider) SupportsPair(base, quote string) bool {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)

	return isoCurrencyPattern.MatchString(base) &&
		isoCurrencyPattern.MatchString(quote) &&
		base != quote
}

// GetRate implements Provider.
func (p *FrankfurterProvider) GetRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	result, err := p.GetRates(ctx, []Pair{{Base: base, Quote: quote}})
	if err != nil {
		return nil, err
	}

	rate, ok := result[Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}]
	if !ok {
		return nil, domain.Errorf(domain.KindProviderUnavailable,
			"frankfurter returned no rate for %s/%s", base, quote)
	}

	return rate, nil
}

// GetRates implements Provider. Pairs sharing a base currency collapse into
// one call with comma-joined symbols.
func (p *FrankfurterProvider) GetRates(ctx context.Context, pairs []Pair) (map[Pair]*domain.ExchangeRate, error) {
	byBase := make(map[string][]string)
	for _, pair := range pairs {
		base := strings.ToUpper(pair.Base)
		quote := strings.ToUpper(pair.Quote)
		if !p.SupportsPair(base, quote) {
			continue
		}
		byBase[base] = append(byBase[base], quote)
	}

	result := make(map[Pair]*domain.ExchangeRate, len(pairs))
	now := time.Now().UTC()

	for base, quotes := range byBase {
		endpoint := fmt.Sprintf("%s/latest?base=%s&symbols=%s",
			p.baseURL, url.QueryEscape(base), url.QueryEscape(strings.Join(quotes, ",")))

		body, err := p.fetch(ctx, endpoint)
		if err != nil {
			return nil, domain.WrapError(domain.KindProviderUnavailable, "frankfurter request failed", err)
		}

		var payload struct {
			Rates map[string]json.Number `json:"rates"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, domain.WrapError(domain.KindProviderUnavailable, "frankfurter returned malformed response", err)
		}

		for quote, raw := range payload.Rates {
			rate, err := decimal.NewFromString(raw.String())
			if err != nil || rate.LessThanOrEqual(decimal.Zero) {
				continue
			}

			pair := Pair{Base: base, Quote: strings.ToUpper(quote)}
			result[pair] = &domain.ExchangeRate{
				Base:      pair.Base,
				Quote:     pair.Quote,
				Rate:      rate,
				Provider:  frankfurterProviderName,
				Timestamp: now,
			}
		}
	}

	return result, nil
}

// CheckHealth implements Provider.
func (p *FrankfurterProvider) CheckHealth(ctx context.Context) error {
	_, err := p.fetch(ctx, p.baseURL+"/latest?base=USD&symbols=EUR")
	return err
}

func (p *FrankfurterProvider) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("frankfurter returned status %d", resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("frankfurter returned status %d", resp.StatusCode))
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
