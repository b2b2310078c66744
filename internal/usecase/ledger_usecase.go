package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/infrastructure/metrics"
)

// PostStatus classifies the outcome of a batch submission.
type PostStatus string

const (
	// StatusPosted means every entry in the batch was freshly persisted.
	StatusPosted PostStatus = "posted"
	// StatusDuplicate means the whole batch had been posted before; the
	// retry was a zero-effect success.
	StatusDuplicate PostStatus = "duplicate"
	// StatusPartialDuplicate means some entries already existed and some
	// were inserted now. This implies a prior crash mid-batch and is
	// surfaced distinctly so operators can alert on it.
	StatusPartialDuplicate PostStatus = "partial_duplicate"
)

// PostJournalEntriesInput is one logical journal batch.
type PostJournalEntriesInput struct {
	Lines          []domain.JournalLine
	PaymentLinkID  string
	TenantID       string
	IdempotencyKey string
	CorrelationID  string
}

// PostResult reports what a submission actually did.
type PostResult struct {
	Status    PostStatus
	Posted    int
	Requested int
}

// LedgerUseCase atomically posts and reverses balanced, idempotent journal
// batches. It is the system of record: nothing else writes ledger entries.
type LedgerUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	entryRepo   EntryRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		metrics:     m,
		logger:      logger.With().Str("component", "ledger").Logger(),
	}
}

// PostJournalEntries posts one balanced batch under one logical idempotency
// key. Entries are keyed "<key>-<i>" so duplicate submission is detected
// per-entry while the batch stays addressable as a whole. The whole batch is
// rejected, with nothing written, when it is unbalanced or references an
// unknown account code.
func (uc *LedgerUseCase) PostJournalEntries(ctx context.Context, input PostJournalEntriesInput) (*PostResult, error) {
	if input.IdempotencyKey == "" {
		return nil, domain.FieldError(domain.KindValidation, "idempotencyKey", "idempotency key is required")
	}

	if input.TenantID == "" {
		return nil, domain.FieldError(domain.KindValidation, "tenantId", "tenant id is required")
	}

	if len(input.Lines) == 0 {
		return nil, domain.FieldError(domain.KindValidation, "lines", "batch must contain at least one entry")
	}

	for _, line := range input.Lines {
		if err := line.Validate(); err != nil {
			return nil, err
		}
	}

	if input.CorrelationID == "" {
		input.CorrelationID = uuid.NewString()
	}

	// Fast-path probe on the batch's first derived key. This is an
	// optimization only: correctness against concurrent duplicates comes
	// from the duplicate-skipping insert below, never from check-then-insert.
	exists, err := uc.entryRepo.ExistsByKey(ctx, derivedKey(input.IdempotencyKey, 0))
	if err != nil {
		return nil, err
	}

	if exists {
		uc.logger.Debug().
			Str("idempotency_key", input.IdempotencyKey).
			Str("correlation_id", input.CorrelationID).
			Msg("batch already posted, skipping")
		uc.metrics.IncDuplicate("full")

		return &PostResult{Status: StatusDuplicate, Posted: 0, Requested: len(input.Lines)}, nil
	}

	if err := validateBalance(input.Lines); err != nil {
		return nil, err
	}

	accounts, err := uc.resolveAccounts(ctx, input.TenantID, input.Lines)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	entries := make([]*domain.LedgerEntry, 0, len(input.Lines))
	for i, line := range input.Lines {
		account := accounts[line.AccountCode]
		entries = append(entries, &domain.LedgerEntry{
			ID:             uc.idGen.Generate(),
			TenantID:       input.TenantID,
			AccountID:      account.ID,
			AccountCode:    account.Code,
			AccountName:    account.Name,
			PaymentLinkID:  input.PaymentLinkID,
			EntryType:      line.EntryType,
			Amount:         line.Amount,
			Currency:       line.Currency,
			Description:    line.Description,
			IdempotencyKey: derivedKey(input.IdempotencyKey, i),
			CreatedAt:      now,
		})
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	inserted, err := uc.entryRepo.BulkInsertTx(ctx, tx, entries)
	if err != nil {
		return nil, err
	}

	if inserted > 0 && uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   input.PaymentLinkID,
			AggregateType: domain.AggregateTypePaymentLink,
			EventType:     domain.EventTypeEntriesPosted,
			Payload: map[string]any{
				"tenant_id":       input.TenantID,
				"payment_link_id": input.PaymentLinkID,
				"idempotency_key": input.IdempotencyKey,
				"entry_count":     inserted,
				"correlation_id":  input.CorrelationID,
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.CreateTx(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := &PostResult{Posted: inserted, Requested: len(entries)}

	switch {
	case inserted == len(entries):
		result.Status = StatusPosted
		uc.metrics.IncBatch(string(StatusPosted), inserted)
		uc.logger.Info().
			Str("idempotency_key", input.IdempotencyKey).
			Str("payment_link_id", input.PaymentLinkID).
			Str("correlation_id", input.CorrelationID).
			Int("entries", inserted).
			Msg("journal batch posted")
	case inserted == 0:
		result.Status = StatusDuplicate
		uc.metrics.IncDuplicate("full")
	default:
		// Some entries existed, some did not: a prior submission crashed
		// between inserts. The skip-duplicates insert has now healed the
		// batch, but the anomaly is worth alerting on.
		result.Status = StatusPartialDuplicate
		uc.metrics.IncBatch(string(StatusPartialDuplicate), inserted)
		uc.metrics.IncDuplicate("partial")
		uc.logger.Warn().
			Str("idempotency_key", input.IdempotencyKey).
			Str("correlation_id", input.CorrelationID).
			Int("inserted", inserted).
			Int("requested", len(entries)).
			Msg("partial duplicate batch detected")
	}

	return result, nil
}

// ReverseEntries builds and posts mirror entries for a previously posted
// batch. Every entry type is flipped, amounts and currencies are preserved,
// and the reversal batch is itself idempotent under "reversal-<originalKey>".
func (uc *LedgerUseCase) ReverseEntries(ctx context.Context, originalKey, reason, tenantID string) (*PostResult, error) {
	if originalKey == "" {
		return nil, domain.FieldError(domain.KindValidation, "originalKey", "original idempotency key is required")
	}

	originals, err := uc.entryRepo.GetByKeyOrPrefix(ctx, tenantID, originalKey)
	if err != nil {
		return nil, err
	}

	if len(originals) == 0 {
		return nil, domain.Errorf(domain.KindNotFound, "no entries found for idempotency key %q", originalKey)
	}

	lines := make([]domain.JournalLine, 0, len(originals))
	for _, entry := range originals {
		lines = append(lines, domain.JournalLine{
			AccountCode: entry.AccountCode,
			EntryType:   entry.EntryType.Opposite(),
			Amount:      entry.Amount,
			Currency:    entry.Currency,
			Description: fmt.Sprintf("Reversal (%s) of %s: %s", reason, originalKey, entry.Description),
		})
	}

	result, err := uc.PostJournalEntries(ctx, PostJournalEntriesInput{
		Lines:          lines,
		PaymentLinkID:  originals[0].PaymentLinkID,
		TenantID:       tenantID,
		IdempotencyKey: "reversal-" + originalKey,
	})
	if err != nil {
		return nil, err
	}

	if result.Status == StatusPosted {
		uc.metrics.IncReversal()
		uc.logger.Info().
			Str("original_key", originalKey).
			Str("reason", reason).
			Int("entries", result.Posted).
			Msg("batch reversed")
	}

	return result, nil
}

// GetEntriesForPaymentLink returns all entries for a payment link, oldest
// first, joined to account code and name.
func (uc *LedgerUseCase) GetEntriesForPaymentLink(ctx context.Context, tenantID, paymentLinkID string) ([]*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByPaymentLink(ctx, tenantID, paymentLinkID)
}

// GetEntriesByIdempotencyKey returns the entries of one logical batch.
func (uc *LedgerUseCase) GetEntriesByIdempotencyKey(ctx context.Context, tenantID, key string) ([]*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByKeyOrPrefix(ctx, tenantID, key)
}

func (uc *LedgerUseCase) resolveAccounts(ctx context.Context, tenantID string, lines []domain.JournalLine) (map[string]*domain.LedgerAccount, error) {
	seen := make(map[string]bool)
	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		if !seen[line.AccountCode] {
			seen[line.AccountCode] = true
			codes = append(codes, line.AccountCode)
		}
	}

	accounts, err := uc.accountRepo.GetByCodes(ctx, tenantID, codes)
	if err != nil {
		return nil, err
	}

	// Fail closed: never post to a default or guessed account.
	for _, code := range codes {
		if _, ok := accounts[code]; !ok {
			return nil, domain.Errorf(domain.KindMissingAccount,
				"account code %s is not provisioned for tenant %s", code, tenantID)
		}
	}

	return accounts, nil
}

// validateBalance rejects the batch unless total debits equal total credits
// within one minor unit of the batch currency.
func validateBalance(lines []domain.JournalLine) error {
	debits := decimal.Zero
	credits := decimal.Zero

	for _, line := range lines {
		if line.EntryType == domain.EntryTypeDebit {
			debits = debits.Add(line.Amount)
		} else {
			credits = credits.Add(line.Amount)
		}
	}

	epsilon := domain.BalanceEpsilon(lines[0].Currency)
	if debits.Sub(credits).Abs().GreaterThan(epsilon) {
		return domain.Errorf(domain.KindUnbalanced,
			"batch is unbalanced: debits %s, credits %s", debits, credits)
	}

	return nil
}

func derivedKey(key string, index int) string {
	return fmt.Sprintf("%s-%d", key, index)
}
