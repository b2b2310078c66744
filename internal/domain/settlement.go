package domain

import "github.com/shopspring/decimal"

// Settlement facts arrive from rail webhooks already validated upstream; each
// rail gets its own struct so posting rules match on an explicit shape
// instead of a loosely-typed payload.

// CardSettlement is a confirmed card-processor settlement.
type CardSettlement struct {
	TenantID      string
	PaymentLinkID string
	TransactionID string
	GrossAmount   decimal.Decimal
	FeeAmount     decimal.Decimal
	Currency      string
	CorrelationID string
}

// Validate checks the settlement fact before any entries are built.
func (s CardSettlement) Validate() error {
	if s.TenantID == "" {
		return FieldError(KindValidation, "tenantId", "tenant id is required")
	}

	if s.TransactionID == "" {
		return FieldError(KindValidation, "transactionId", "transaction id is required")
	}

	if s.GrossAmount.LessThanOrEqual(decimal.Zero) {
		return FieldError(KindValidation, "grossAmount", "gross amount must be positive")
	}

	if s.FeeAmount.IsNegative() {
		return FieldError(KindValidation, "feeAmount", "fee amount cannot be negative")
	}

	if s.Currency == "" {
		return FieldError(KindValidation, "currency", "currency is required")
	}

	return nil
}

// CardRefund is a confirmed card refund. Only the gross leg is reversed; fee
// reversal is deferred until processors report refunded fees reliably.
type CardRefund struct {
	TenantID      string
	PaymentLinkID string
	RefundID      string
	Amount        decimal.Decimal
	Currency      string
	CorrelationID string
}

// Validate checks the refund fact.
func (r CardRefund) Validate() error {
	if r.TenantID == "" {
		return FieldError(KindValidation, "tenantId", "tenant id is required")
	}

	if r.RefundID == "" {
		return FieldError(KindValidation, "refundId", "refund id is required")
	}

	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return FieldError(KindValidation, "amount", "refund amount must be positive")
	}

	if r.Currency == "" {
		return FieldError(KindValidation, "currency", "currency is required")
	}

	return nil
}

// TokenSettlement is a confirmed distributed-ledger transfer. Amount is
// already expressed in the invoice currency.
type TokenSettlement struct {
	TenantID      string
	PaymentLinkID string
	TransferID    string
	Token         TokenType
	Amount        decimal.Decimal
	Currency      string
	CorrelationID string
}

// Validate checks the settlement fact.
func (s TokenSettlement) Validate() error {
	if s.TenantID == "" {
		return FieldError(KindValidation, "tenantId", "tenant id is required")
	}

	if s.TransferID == "" {
		return FieldError(KindValidation, "transferId", "transfer id is required")
	}

	if s.Token == "" {
		return FieldError(KindValidation, "token", "token is required")
	}

	if s.Amount.LessThanOrEqual(decimal.Zero) {
		return FieldError(KindValidation, "amount", "amount must be positive")
	}

	if s.Currency == "" {
		return FieldError(KindValidation, "currency", "currency is required")
	}

	return nil
}

// BankSettlement is a confirmed bank-transfer settlement.
type BankSettlement struct {
	TenantID      string
	PaymentLinkID string
	TransferID    string
	Amount        decimal.Decimal
	Currency      string
	CorrelationID string
}

// Validate checks the settlement fact.
func (s BankSettlement) Validate() error {
	if s.TenantID == "" {
		return FieldError(KindValidation, "tenantId", "tenant id is required")
	}

	if s.TransferID == "" {
		return FieldError(KindValidation, "transferId", "transfer id is required")
	}

	if s.Amount.LessThanOrEqual(decimal.Zero) {
		return FieldError(KindValidation, "amount", "amount must be positive")
	}

	if s.Currency == "" {
		return FieldError(KindValidation, "currency", "currency is required")
	}

	return nil
}
