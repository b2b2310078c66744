package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
)

// SnapshotRepository implements usecase.SnapshotRepository. Snapshots are
// append-only; there is no update path. A partial unique index on
// (payment_link_id, token_type) for CREATION rows keeps re-captures from
// duplicating the pricing-time record.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

const createSnapshotSQL = `
INSERT INTO fx_snapshots
	(id, payment_link_id, snapshot_type, token_type, base_currency, quote_currency, rate, provider, captured_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create persists one snapshot.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *domain.FXSnapshot) error {
	_, err := r.pool.Exec(ctx, createSnapshotSQL, snapshotArgs(snapshot)...)
	return err
}

// CreateTx persists one snapshot inside a caller-supplied transaction.
func (r *SnapshotRepository) CreateTx(ctx context.Context, tx usecase.Transaction, snapshot *domain.FXSnapshot) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, createSnapshotSQL, snapshotArgs(snapshot)...)
	return err
}

const snapshotColumnCount = 9

// BulkInsertSkipDuplicates inserts snapshots in one statement. CREATION rows
// that collide with the partial uniqueness index are skipped, so a retried
// capture after a partial failure fills only the gaps.
func (r *SnapshotRepository) BulkInsertSkipDuplicates(ctx context.Context, snapshots []*domain.FXSnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(snapshots))
	args := make([]any, 0, len(snapshots)*snapshotColumnCount)

	for i, snapshot := range snapshots {
		base := i * snapshotColumnCount
		marks := make([]string, snapshotColumnCount)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
		args = append(args, snapshotArgs(snapshot)...)
	}

	query := `
INSERT INTO fx_snapshots
	(id, payment_link_id, snapshot_type, token_type, base_currency, quote_currency, rate, provider, captured_at)
VALUES ` + strings.Join(placeholders, ", ") + `
ON CONFLICT (payment_link_id, token_type) WHERE snapshot_type = 'CREATION' DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

const snapshotsByPaymentLinkSQL = `
SELECT id, payment_link_id, snapshot_type, token_type, base_currency, quote_currency, rate, provider, captured_at
FROM fx_snapshots
WHERE payment_link_id = $1
ORDER BY captured_at, token_type`

// GetByPaymentLink returns all snapshots for a payment link, oldest first.
func (r *SnapshotRepository) GetByPaymentLink(ctx context.Context, paymentLinkID string) ([]*domain.FXSnapshot, error) {
	rows, err := r.pool.Query(ctx, snapshotsByPaymentLinkSQL, paymentLinkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*domain.FXSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots, rows.Err()
}

const latestSnapshotSQL = `
SELECT id, payment_link_id, snapshot_type, token_type, base_currency, quote_currency, rate, provider, captured_at
FROM fx_snapshots
WHERE payment_link_id = $1 AND snapshot_type = $2 AND ($3 = '' OR token_type = $3)
ORDER BY captured_at DESC
LIMIT 1`

// GetLatest returns the most recent snapshot for the link/type/token
// combination, or domain.ErrNotFound. An empty token matches any token.
func (r *SnapshotRepository) GetLatest(ctx context.Context, paymentLinkID string, snapshotType domain.SnapshotType, token domain.TokenType) (*domain.FXSnapshot, error) {
	row := r.pool.QueryRow(ctx, latestSnapshotSQL, paymentLinkID, string(snapshotType), string(token))

	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Errorf(domain.KindNotFound,
				"no %s snapshot for payment link %s", snapshotType, paymentLinkID)
		}

		return nil, err
	}

	return snapshot, nil
}

func snapshotArgs(snapshot *domain.FXSnapshot) []any {
	return []any{
		snapshot.ID,
		snapshot.PaymentLinkID,
		string(snapshot.SnapshotType),
		string(snapshot.TokenType),
		snapshot.BaseCurrency,
		snapshot.QuoteCurrency,
		decimalToNumeric(snapshot.Rate),
		snapshot.Provider,
		timeToPgTimestamptz(snapshot.CapturedAt),
	}
}

func scanSnapshot(row pgx.Row) (*domain.FXSnapshot, error) {
	var (
		snapshot     domain.FXSnapshot
		snapshotType string
		tokenType    string
		rate         pgtype.Numeric
	)

	err := row.Scan(
		&snapshot.ID,
		&snapshot.PaymentLinkID,
		&snapshotType,
		&tokenType,
		&snapshot.BaseCurrency,
		&snapshot.QuoteCurrency,
		&rate,
		&snapshot.Provider,
		&snapshot.CapturedAt,
	)
	if err != nil {
		return nil, err
	}

	snapshot.SnapshotType = domain.SnapshotType(snapshotType)
	snapshot.TokenType = domain.TokenType(tokenType)
	snapshot.Rate = numericToDecimal(rate)

	return &snapshot, nil
}
