package usecase

import (
	"context"
	"time"

	"github.com/iho/railledger/internal/domain"
)

// AccountRepository defines data access for chart-of-accounts rows.
type AccountRepository interface {
	// Create inserts an account. A unique-constraint violation on
	// (tenant_id, code) surfaces as domain.ErrDuplicateKey.
	Create(ctx context.Context, account *domain.LedgerAccount) error
	GetByTenantAndCode(ctx context.Context, tenantID, code string) (*domain.LedgerAccount, error)
	// GetByCodes resolves distinct codes for a tenant in one query. Codes
	// with no row are absent from the map.
	GetByCodes(ctx context.Context, tenantID string, codes []string) (map[string]*domain.LedgerAccount, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	ExistsByKey(ctx context.Context, idempotencyKey string) (bool, error)
	// BulkInsertTx inserts all entries in one duplicate-skipping statement
	// and returns how many rows were actually inserted.
	BulkInsertTx(ctx context.Context, tx Transaction, entries []*domain.LedgerEntry) (int, error)
	GetByPaymentLink(ctx context.Context, tenantID, paymentLinkID string) ([]*domain.LedgerEntry, error)
	// GetByKeyOrPrefix returns entries whose key equals key or starts with
	// "key-", ordered by key.
	GetByKeyOrPrefix(ctx context.Context, tenantID, key string) ([]*domain.LedgerEntry, error)
}

// SnapshotRepository defines data access for FX snapshots.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *domain.FXSnapshot) error
	CreateTx(ctx context.Context, tx Transaction, snapshot *domain.FXSnapshot) error
	// BulkInsertSkipDuplicates inserts snapshots in one statement, skipping
	// rows that collide with the creation-snapshot uniqueness index.
	BulkInsertSkipDuplicates(ctx context.Context, snapshots []*domain.FXSnapshot) (int, error)
	GetByPaymentLink(ctx context.Context, paymentLinkID string) ([]*domain.FXSnapshot, error)
	// GetLatest returns the most recent snapshot for the link/type/token
	// combination, or domain.ErrNotFound.
	GetLatest(ctx context.Context, paymentLinkID string, snapshotType domain.SnapshotType, token domain.TokenType) (*domain.FXSnapshot, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	CreateTx(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// RateFactory resolves a single pair through the provider fallback chain.
// Settlement-time capture calls this directly, bypassing any cache.
type RateFactory interface {
	GetRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
}

// TokenRateFetcher resolves the tracked-token set in one batched call.
type TokenRateFetcher interface {
	FetchTrackedTokenRates(ctx context.Context, quote string) map[domain.TokenType]*domain.ExchangeRate
}

// RateCache serves non-binding creation-time lookups. Get returns nil on
// miss or stale entry.
type RateCache interface {
	Get(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
	Put(ctx context.Context, rate *domain.ExchangeRate) error
}
