package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType marks a ledger entry as a debit or credit leg.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Opposite returns the flipped entry type, used when building reversals.
func (t EntryType) Opposite() EntryType {
	if t == EntryTypeDebit {
		return EntryTypeCredit
	}

	return EntryTypeDebit
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == EntryTypeDebit || t == EntryTypeCredit
}

// LedgerEntry is one persisted debit or credit leg. Entries are append-only
// and immutable; corrections are additive reversal entries, never edits.
// idempotency_key is globally unique.
type LedgerEntry struct {
	ID             string
	TenantID       string
	AccountID      string
	AccountCode    string
	AccountName    string
	PaymentLinkID  string
	EntryType      EntryType
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
	CreatedAt      time.Time
}

// JournalLine is the pre-persistence shape posting rules produce. The account
// is referenced by code; resolution to a tenant account row happens at post
// time and fails closed on unknown codes.
type JournalLine struct {
	AccountCode string
	EntryType   EntryType
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// Validate checks a single journal line.
func (l JournalLine) Validate() error {
	if l.AccountCode == "" {
		return FieldError(KindValidation, "accountCode", "account code is required")
	}

	if !l.EntryType.Valid() {
		return FieldError(KindValidation, "entryType", "entry type must be DEBIT or CREDIT")
	}

	if l.Amount.LessThanOrEqual(decimal.Zero) {
		return FieldError(KindValidation, "amount", "amount must be positive")
	}

	if l.Currency == "" {
		return FieldError(KindValidation, "currency", "currency is required")
	}

	return nil
}

// BalanceEpsilon is the tolerated absolute difference between total debits
// and total credits for a batch in the given currency: one minor unit.
// Unknown currencies fall back to 0.01, matching two-decimal majors.
func BalanceEpsilon(currency string) decimal.Decimal {
	if zeroDecimalCurrencies[currency] {
		return decimal.NewFromInt(1)
	}

	return decimal.New(1, -2)
}

// ISO 4217 currencies with no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true,
	"JPY": true, "KMF": true, "KRW": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}
