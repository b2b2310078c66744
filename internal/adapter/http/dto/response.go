package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/rates"
)

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID             string          `json:"id"`
	AccountCode    string          `json:"account_code"`
	AccountName    string          `json:"account_name"`
	PaymentLinkID  string          `json:"payment_link_id,omitempty"`
	EntryType      string          `json:"entry_type"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:             e.ID,
		AccountCode:    e.AccountCode,
		AccountName:    e.AccountName,
		PaymentLinkID:  e.PaymentLinkID,
		EntryType:      string(e.EntryType),
		Amount:         e.Amount,
		Currency:       e.Currency,
		Description:    e.Description,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// SnapshotResponse represents an FX snapshot in API responses.
type SnapshotResponse struct {
	ID            string          `json:"id"`
	PaymentLinkID string          `json:"payment_link_id"`
	SnapshotType  string          `json:"snapshot_type"`
	TokenType     string          `json:"token_type,omitempty"`
	BaseCurrency  string          `json:"base_currency"`
	QuoteCurrency string          `json:"quote_currency"`
	Rate          decimal.Decimal `json:"rate"`
	Provider      string          `json:"provider"`
	CapturedAt    time.Time       `json:"captured_at"`
}

// SnapshotFromDomain converts a domain snapshot to a response.
func SnapshotFromDomain(s *domain.FXSnapshot) *SnapshotResponse {
	return &SnapshotResponse{
		ID:            s.ID,
		PaymentLinkID: s.PaymentLinkID,
		SnapshotType:  string(s.SnapshotType),
		TokenType:     string(s.TokenType),
		BaseCurrency:  s.BaseCurrency,
		QuoteCurrency: s.QuoteCurrency,
		Rate:          s.Rate,
		Provider:      s.Provider,
		CapturedAt:    s.CapturedAt,
	}
}

// SnapshotsFromDomain converts domain snapshots to responses.
func SnapshotsFromDomain(snapshots []*domain.FXSnapshot) []*SnapshotResponse {
	result := make([]*SnapshotResponse, len(snapshots))
	for i, s := range snapshots {
		result[i] = SnapshotFromDomain(s)
	}
	return result
}

// VarianceResponse represents creation-to-settlement rate drift. A null body
// distinguishes "not computable yet" from a zero variance.
type VarianceResponse struct {
	CreationRate    decimal.Decimal `json:"creation_rate"`
	SettlementRate  decimal.Decimal `json:"settlement_rate"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
}

// VarianceFromDomain converts a domain variance to a response.
func VarianceFromDomain(v *domain.RateVariance) *VarianceResponse {
	if v == nil {
		return nil
	}

	return &VarianceResponse{
		CreationRate:    v.CreationRate,
		SettlementRate:  v.SettlementRate,
		Variance:        v.Variance,
		VariancePercent: v.VariancePercent,
	}
}

// RateResponse represents a live or cached exchange rate.
type RateResponse struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Rate      decimal.Decimal `json:"rate"`
	Provider  string          `json:"provider"`
	Timestamp time.Time       `json:"timestamp"`
	Cached    bool            `json:"cached"`
}

// RateFromDomain converts a domain rate to a response.
func RateFromDomain(r *domain.ExchangeRate, cached bool) *RateResponse {
	return &RateResponse{
		Base:      r.Base,
		Quote:     r.Quote,
		Rate:      r.Rate,
		Provider:  r.Provider,
		Timestamp: r.Timestamp,
		Cached:    cached,
	}
}

// ProviderHealthResponse represents one provider's probe result.
type ProviderHealthResponse struct {
	Provider string `json:"provider"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

// ProviderHealthFromRates converts factory probe results to responses.
func ProviderHealthFromRates(results []rates.ProviderHealth) []ProviderHealthResponse {
	out := make([]ProviderHealthResponse, len(results))
	for i, r := range results {
		out[i] = ProviderHealthResponse{Provider: r.Provider, Healthy: r.Healthy, Error: r.Error}
	}
	return out
}

// ProvisionResponse reports the accounts ensured for a tenant and rail.
type ProvisionResponse struct {
	TenantID string   `json:"tenant_id"`
	Rail     string   `json:"rail"`
	Codes    []string `json:"codes"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}
