package domain

import (
	"regexp"
	"strings"
)

// The snapshot store enforces fixed-width columns; normalization failures
// must name the offending field and its length instead of surfacing as a
// generic storage error.
const (
	MinCurrencyLength = 3
	MaxCurrencyLength = 10
	MaxProviderLength = 64
)

var currencyPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// NormalizeCurrency uppercases and trims a currency or token code and checks
// it fits the bounded alphanumeric form the snapshot columns require.
func NormalizeCurrency(field, code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	if len(normalized) < MinCurrencyLength || len(normalized) > MaxCurrencyLength {
		return "", FieldError(KindInvalidSnapshot, field,
			"currency code %q has length %d, must be %d-%d characters",
			normalized, len(normalized), MinCurrencyLength, MaxCurrencyLength)
	}

	if !currencyPattern.MatchString(normalized) {
		return "", FieldError(KindInvalidSnapshot, field,
			"currency code %q must be uppercase alphanumeric", normalized)
	}

	return normalized, nil
}

// NormalizeProvider trims a provider identifier and checks its bounded length.
func NormalizeProvider(provider string) (string, error) {
	normalized := strings.TrimSpace(provider)

	if normalized == "" {
		return "", FieldError(KindInvalidSnapshot, "provider", "provider is required")
	}

	if len(normalized) > MaxProviderLength {
		return "", FieldError(KindInvalidSnapshot, "provider",
			"provider %q has length %d, exceeds maximum of %d",
			normalized, len(normalized), MaxProviderLength)
	}

	return normalized, nil
}
