package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/railledger/internal/domain"
)

// AccountRepository implements usecase.AccountRepository on top of the
// ledger_accounts table. The (tenant_id, code) unique constraint is the
// race-safety backstop for concurrent provisioning.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const createAccountSQL = `
INSERT INTO ledger_accounts (id, tenant_id, code, name, type, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// Create inserts an account, mapping the unique-constraint violation to
// domain.ErrDuplicateKey so callers can treat a lost provisioning race as
// success.
func (r *AccountRepository) Create(ctx context.Context, account *domain.LedgerAccount) error {
	_, err := r.pool.Exec(ctx, createAccountSQL,
		account.ID,
		account.TenantID,
		account.Code,
		account.Name,
		string(account.Type),
		timeToPgTimestamptz(account.CreatedAt),
	)
	if isUniqueViolation(err) {
		return domain.WrapError(domain.KindDuplicateKey,
			"account already exists for tenant "+account.TenantID+" code "+account.Code, err)
	}

	return err
}

const getAccountSQL = `
SELECT id, tenant_id, code, name, type, created_at
FROM ledger_accounts
WHERE tenant_id = $1 AND code = $2`

// GetByTenantAndCode retrieves one chart-of-accounts row.
func (r *AccountRepository) GetByTenantAndCode(ctx context.Context, tenantID, code string) (*domain.LedgerAccount, error) {
	row := r.pool.QueryRow(ctx, getAccountSQL, tenantID, code)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Errorf(domain.KindNotFound, "account %s not found for tenant %s", code, tenantID)
		}

		return nil, err
	}

	return account, nil
}

const getAccountsByCodesSQL = `
SELECT id, tenant_id, code, name, type, created_at
FROM ledger_accounts
WHERE tenant_id = $1 AND code = ANY($2)`

// GetByCodes resolves distinct codes for a tenant in one query. Codes with no
// row are simply absent from the result; the caller decides whether that is
// fatal.
func (r *AccountRepository) GetByCodes(ctx context.Context, tenantID string, codes []string) (map[string]*domain.LedgerAccount, error) {
	rows, err := r.pool.Query(ctx, getAccountsByCodesSQL, tenantID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make(map[string]*domain.LedgerAccount, len(codes))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}

		accounts[account.Code] = account
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.LedgerAccount, error) {
	var (
		account     domain.LedgerAccount
		accountType string
	)

	err := row.Scan(
		&account.ID,
		&account.TenantID,
		&account.Code,
		&account.Name,
		&accountType,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Type = domain.AccountType(accountType)

	return &account, nil
}
