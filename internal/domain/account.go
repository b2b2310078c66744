package domain

import "time"

// AccountType is the chart-of-accounts classification.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return true
	}

	return false
}

// LedgerAccount is a tenant-scoped chart-of-accounts row. Accounts are
// provisioned once and never mutated or deleted; (tenant_id, code) is unique.
type LedgerAccount struct {
	ID        string
	TenantID  string
	Code      string
	Name      string
	Type      AccountType
	CreatedAt time.Time
}

// AccountSpec describes an account a posting rule requires to exist.
type AccountSpec struct {
	Code string
	Name string
	Type AccountType
}
