package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository. Entries are immutable
// rows; the UNIQUE constraint on idempotency_key is what makes duplicate
// submissions collapse safely under concurrency.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

const existsByKeySQL = `
SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE idempotency_key = $1)`

// ExistsByKey reports whether an entry with the key is already persisted.
func (r *EntryRepository) ExistsByKey(ctx context.Context, idempotencyKey string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, existsByKeySQL, idempotencyKey).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

const entryColumnCount = 10

// BulkInsertTx inserts all entries in one statement. Rows whose idempotency
// key already exists are skipped by ON CONFLICT DO NOTHING rather than
// checked beforehand, so two concurrent submissions of the same batch cannot
// both insert. Returns the number of rows actually written.
func (r *EntryRepository) BulkInsertTx(ctx context.Context, tx usecase.Transaction, entries []*domain.LedgerEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	pgxTx := tx.(*Tx).PgxTx()

	placeholders := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*entryColumnCount)

	for i, entry := range entries {
		base := i * entryColumnCount
		marks := make([]string, entryColumnCount)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			entry.ID,
			entry.TenantID,
			entry.AccountID,
			entry.PaymentLinkID,
			string(entry.EntryType),
			decimalToNumeric(entry.Amount),
			entry.Currency,
			entry.Description,
			entry.IdempotencyKey,
			timeToPgTimestamptz(entry.CreatedAt),
		)
	}

	query := `
INSERT INTO ledger_entries
	(id, tenant_id, account_id, payment_link_id, entry_type, amount, currency, description, idempotency_key, created_at)
VALUES ` + strings.Join(placeholders, ", ") + `
ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := pgxTx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

const entriesByPaymentLinkSQL = `
SELECT e.id, e.tenant_id, e.account_id, a.code, a.name, e.payment_link_id,
	e.entry_type, e.amount, e.currency, e.description, e.idempotency_key, e.created_at
FROM ledger_entries e
JOIN ledger_accounts a ON a.id = e.account_id
WHERE e.tenant_id = $1 AND e.payment_link_id = $2
ORDER BY e.created_at, e.idempotency_key`

// GetByPaymentLink returns all entries for a payment link, oldest first,
// joined to the account's code and name.
func (r *EntryRepository) GetByPaymentLink(ctx context.Context, tenantID, paymentLinkID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, entriesByPaymentLinkSQL, tenantID, paymentLinkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

const entriesByKeyOrPrefixSQL = `
SELECT e.id, e.tenant_id, e.account_id, a.code, a.name, e.payment_link_id,
	e.entry_type, e.amount, e.currency, e.description, e.idempotency_key, e.created_at
FROM ledger_entries e
JOIN ledger_accounts a ON a.id = e.account_id
WHERE e.tenant_id = $1 AND (e.idempotency_key = $2 OR e.idempotency_key LIKE $2 || '-%')
ORDER BY e.idempotency_key`

// GetByKeyOrPrefix returns the entries of one logical batch: exact key match
// or the batch's derived "<key>-<i>" keys.
func (r *EntryRepository) GetByKeyOrPrefix(ctx context.Context, tenantID, key string) ([]*domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, entriesByKeyOrPrefixSQL, tenantID, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry

	for rows.Next() {
		var (
			entry     domain.LedgerEntry
			entryType string
			amount    pgtype.Numeric
		)

		err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.AccountID,
			&entry.AccountCode,
			&entry.AccountName,
			&entry.PaymentLinkID,
			&entryType,
			&amount,
			&entry.Currency,
			&entry.Description,
			&entry.IdempotencyKey,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		entry.EntryType = domain.EntryType(entryType)
		entry.Amount = numericToDecimal(amount)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
