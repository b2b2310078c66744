// Package mocks provides hand-rolled in-memory fakes for the usecase
// interfaces. Every method can be overridden per-test via its Func field;
// without an override the fake behaves like a well-behaved store, including
// duplicate-skipping inserts and unique-constraint emulation.
package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
)

// MockAccountRepository is an in-memory AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.LedgerAccount // keyed tenant|code

	CreateFunc             func(ctx context.Context, account *domain.LedgerAccount) error
	GetByTenantAndCodeFunc func(ctx context.Context, tenantID, code string) (*domain.LedgerAccount, error)
	GetByCodesFunc         func(ctx context.Context, tenantID string, codes []string) (map[string]*domain.LedgerAccount, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{accounts: make(map[string]*domain.LedgerAccount)}
}

func accountKey(tenantID, code string) string { return tenantID + "|" + code }

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.LedgerAccount) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := accountKey(account.TenantID, account.Code)
	if _, exists := m.accounts[key]; exists {
		return domain.NewError(domain.KindDuplicateKey, "account already exists")
	}
	m.accounts[key] = account
	return nil
}

func (m *MockAccountRepository) GetByTenantAndCode(ctx context.Context, tenantID, code string) (*domain.LedgerAccount, error) {
	if m.GetByTenantAndCodeFunc != nil {
		return m.GetByTenantAndCodeFunc(ctx, tenantID, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if account, ok := m.accounts[accountKey(tenantID, code)]; ok {
		return account, nil
	}
	return nil, domain.NewError(domain.KindNotFound, "account not found")
}

func (m *MockAccountRepository) GetByCodes(ctx context.Context, tenantID string, codes []string) (map[string]*domain.LedgerAccount, error) {
	if m.GetByCodesFunc != nil {
		return m.GetByCodesFunc(ctx, tenantID, codes)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]*domain.LedgerAccount)
	for _, code := range codes {
		if account, ok := m.accounts[accountKey(tenantID, code)]; ok {
			result[code] = account
		}
	}
	return result, nil
}

// Seed inserts an account without the duplicate check, for test setup.
func (m *MockAccountRepository) Seed(account *domain.LedgerAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountKey(account.TenantID, account.Code)] = account
}

// MockEntryRepository is an in-memory EntryRepository with duplicate-skipping
// bulk inserts keyed by idempotency key.
type MockEntryRepository struct {
	mu      sync.Mutex
	entries map[string]*domain.LedgerEntry // keyed by idempotency key
	order   []string

	ExistsByKeyFunc      func(ctx context.Context, key string) (bool, error)
	BulkInsertTxFunc     func(ctx context.Context, tx usecase.Transaction, entries []*domain.LedgerEntry) (int, error)
	GetByPaymentLinkFunc func(ctx context.Context, tenantID, paymentLinkID string) ([]*domain.LedgerEntry, error)
	GetByKeyOrPrefixFunc func(ctx context.Context, tenantID, key string) ([]*domain.LedgerEntry, error)
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{entries: make(map[string]*domain.LedgerEntry)}
}

func (m *MockEntryRepository) ExistsByKey(ctx context.Context, key string) (bool, error) {
	if m.ExistsByKeyFunc != nil {
		return m.ExistsByKeyFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *MockEntryRepository) BulkInsertTx(ctx context.Context, tx usecase.Transaction, entries []*domain.LedgerEntry) (int, error) {
	if m.BulkInsertTxFunc != nil {
		return m.BulkInsertTxFunc(ctx, tx, entries)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, entry := range entries {
		if _, exists := m.entries[entry.IdempotencyKey]; exists {
			continue
		}
		m.entries[entry.IdempotencyKey] = entry
		m.order = append(m.order, entry.IdempotencyKey)
		inserted++
	}
	return inserted, nil
}

func (m *MockEntryRepository) GetByPaymentLink(ctx context.Context, tenantID, paymentLinkID string) ([]*domain.LedgerEntry, error) {
	if m.GetByPaymentLinkFunc != nil {
		return m.GetByPaymentLinkFunc(ctx, tenantID, paymentLinkID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.LedgerEntry
	for _, key := range m.order {
		entry := m.entries[key]
		if entry.TenantID == tenantID && entry.PaymentLinkID == paymentLinkID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (m *MockEntryRepository) GetByKeyOrPrefix(ctx context.Context, tenantID, key string) ([]*domain.LedgerEntry, error) {
	if m.GetByKeyOrPrefixFunc != nil {
		return m.GetByKeyOrPrefixFunc(ctx, tenantID, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.LedgerEntry
	for _, entry := range m.entries {
		if entry.TenantID != tenantID {
			continue
		}
		if entry.IdempotencyKey == key || strings.HasPrefix(entry.IdempotencyKey, key+"-") {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IdempotencyKey < result[j].IdempotencyKey
	})
	return result, nil
}

// All returns every stored entry in insertion order.
func (m *MockEntryRepository) All() []*domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.LedgerEntry, 0, len(m.order))
	for _, key := range m.order {
		result = append(result, m.entries[key])
	}
	return result
}

// MockSnapshotRepository is an in-memory SnapshotRepository.
type MockSnapshotRepository struct {
	mu        sync.Mutex
	snapshots []*domain.FXSnapshot

	CreateFunc                   func(ctx context.Context, snapshot *domain.FXSnapshot) error
	CreateTxFunc                 func(ctx context.Context, tx usecase.Transaction, snapshot *domain.FXSnapshot) error
	BulkInsertSkipDuplicatesFunc func(ctx context.Context, snapshots []*domain.FXSnapshot) (int, error)
	GetByPaymentLinkFunc         func(ctx context.Context, paymentLinkID string) ([]*domain.FXSnapshot, error)
	GetLatestFunc                func(ctx context.Context, paymentLinkID string, snapshotType domain.SnapshotType, token domain.TokenType) (*domain.FXSnapshot, error)
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{}
}

func (m *MockSnapshotRepository) Create(ctx context.Context, snapshot *domain.FXSnapshot) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, snapshot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *MockSnapshotRepository) CreateTx(ctx context.Context, tx usecase.Transaction, snapshot *domain.FXSnapshot) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, snapshot)
	}
	return m.Create(ctx, snapshot)
}

func (m *MockSnapshotRepository) BulkInsertSkipDuplicates(ctx context.Context, snapshots []*domain.FXSnapshot) (int, error) {
	if m.BulkInsertSkipDuplicatesFunc != nil {
		return m.BulkInsertSkipDuplicatesFunc(ctx, snapshots)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, snapshot := range snapshots {
		if m.hasLocked(snapshot.PaymentLinkID, snapshot.SnapshotType, snapshot.TokenType) {
			continue
		}
		m.snapshots = append(m.snapshots, snapshot)
		inserted++
	}
	return inserted, nil
}

func (m *MockSnapshotRepository) hasLocked(linkID string, snapshotType domain.SnapshotType, token domain.TokenType) bool {
	for _, s := range m.snapshots {
		if s.PaymentLinkID == linkID && s.SnapshotType == snapshotType && s.TokenType == token {
			return true
		}
	}
	return false
}

func (m *MockSnapshotRepository) GetByPaymentLink(ctx context.Context, paymentLinkID string) ([]*domain.FXSnapshot, error) {
	if m.GetByPaymentLinkFunc != nil {
		return m.GetByPaymentLinkFunc(ctx, paymentLinkID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.FXSnapshot
	for _, s := range m.snapshots {
		if s.PaymentLinkID == paymentLinkID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *MockSnapshotRepository) GetLatest(ctx context.Context, paymentLinkID string, snapshotType domain.SnapshotType, token domain.TokenType) (*domain.FXSnapshot, error) {
	if m.GetLatestFunc != nil {
		return m.GetLatestFunc(ctx, paymentLinkID, snapshotType, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.FXSnapshot
	for _, s := range m.snapshots {
		if s.PaymentLinkID != paymentLinkID || s.SnapshotType != snapshotType {
			continue
		}
		if token != "" && s.TokenType != token {
			continue
		}
		if latest == nil || s.CapturedAt.After(latest.CapturedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, domain.NewError(domain.KindNotFound, "snapshot not found")
	}
	return latest, nil
}

// MockOutboxRepository is an in-memory OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent

	CreateTxFunc       func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
	GetUnpublishedFunc func(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublishedFunc  func(ctx context.Context, id string, publishedAt time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) CreateTx(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.OutboxEvent
	for _, event := range m.events {
		if !event.Published {
			result = append(result, event)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range m.events {
		if event.ID == id {
			event.Published = true
			event.PublishedAt = &publishedAt
		}
	}
	return nil
}

// Events returns all recorded events.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), m.events...)
}

// MockTransaction is a no-op Transaction recording commit/rollback calls.
type MockTransaction struct {
	Committed  bool
	RolledBack bool

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		return t.CommitFunc(ctx)
	}
	t.Committed = true
	return nil
}

func (t *MockTransaction) Rollback(ctx context.Context) error {
	if t.RollbackFunc != nil {
		return t.RollbackFunc(ctx)
	}
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockTransactionManager hands out MockTransactions.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockIDGenerator returns sequential deterministic ids.
type MockIDGenerator struct {
	mu      sync.Mutex
	counter int

	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "id-" + itoa(m.counter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// MockRateFactory resolves pairs from a static table.
type MockRateFactory struct {
	mu    sync.Mutex
	Rates map[string]*domain.ExchangeRate // keyed "BASE/QUOTE"
	Err   error
	Calls int

	GetRateFunc func(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
}

func NewMockRateFactory() *MockRateFactory {
	return &MockRateFactory{Rates: make(map[string]*domain.ExchangeRate)}
}

func (m *MockRateFactory) GetRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	if m.GetRateFunc != nil {
		return m.GetRateFunc(ctx, base, quote)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if rate, ok := m.Rates[base+"/"+quote]; ok {
		return rate, nil
	}
	return nil, domain.NewError(domain.KindProviderUnavailable, "no rate for "+base+"/"+quote)
}

// MockTokenRateFetcher returns a static token rate map.
type MockTokenRateFetcher struct {
	Result map[domain.TokenType]*domain.ExchangeRate

	FetchFunc func(ctx context.Context, quote string) map[domain.TokenType]*domain.ExchangeRate
}

func NewMockTokenRateFetcher() *MockTokenRateFetcher {
	return &MockTokenRateFetcher{Result: make(map[domain.TokenType]*domain.ExchangeRate)}
}

func (m *MockTokenRateFetcher) FetchTrackedTokenRates(ctx context.Context, quote string) map[domain.TokenType]*domain.ExchangeRate {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, quote)
	}
	return m.Result
}

// MockRateCache is an in-memory RateCache without TTL semantics.
type MockRateCache struct {
	mu    sync.Mutex
	rates map[string]*domain.ExchangeRate

	GetFunc func(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
	PutFunc func(ctx context.Context, rate *domain.ExchangeRate) error
}

func NewMockRateCache() *MockRateCache {
	return &MockRateCache{rates: make(map[string]*domain.ExchangeRate)}
}

func (m *MockRateCache) Get(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, base, quote)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rates[base+"/"+quote], nil
}

func (m *MockRateCache) Put(ctx context.Context, rate *domain.ExchangeRate) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, rate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[rate.Base+"/"+rate.Quote] = rate
	return nil
}
