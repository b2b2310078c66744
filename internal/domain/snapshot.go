package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotType distinguishes the two points in a payment's life at which a
// rate is observed: when the payment link is priced and when it settles.
type SnapshotType string

const (
	SnapshotTypeCreation   SnapshotType = "CREATION"
	SnapshotTypeSettlement SnapshotType = "SETTLEMENT"
)

// Valid reports whether t is a known snapshot type.
func (t SnapshotType) Valid() bool {
	return t == SnapshotTypeCreation || t == SnapshotTypeSettlement
}

// FXSnapshot is an immutable rate observation. CREATION snapshots are
// best-effort, one per candidate token per payment link; the SETTLEMENT
// snapshot for the token actually used is authoritative.
type FXSnapshot struct {
	ID            string
	PaymentLinkID string
	SnapshotType  SnapshotType
	TokenType     TokenType
	BaseCurrency  string
	QuoteCurrency string
	Rate          decimal.Decimal
	Provider      string
	CapturedAt    time.Time
}

// ExchangeRate is the transient shape returned by rate providers and the
// cache. It is never stored as-is; persistence goes through FXSnapshot.
type ExchangeRate struct {
	Base      string
	Quote     string
	Rate      decimal.Decimal
	Provider  string
	Timestamp time.Time
}

// RateVariance is the drift between the pricing-time and booking-time rates,
// the tenant's currency-risk exposure on one payment.
type RateVariance struct {
	CreationRate    decimal.Decimal
	SettlementRate  decimal.Decimal
	Variance        decimal.Decimal
	VariancePercent decimal.Decimal
}
