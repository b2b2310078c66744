package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/infrastructure/metrics"
)

// Advisory rate plausibility bounds. Rates outside these are almost
// certainly a provider glitch but are still recorded; reconciliation reads
// the warning, the booking flow must not be blocked by it.
var (
	minPlausibleRate = decimal.New(1, -9)
	maxPlausibleRate = decimal.New(1, 9)
	pegTolerance     = decimal.NewFromFloat(0.05)
)

// CreateSnapshotInput is a rate observation to persist.
type CreateSnapshotInput struct {
	PaymentLinkID string
	SnapshotType  domain.SnapshotType
	TokenType     domain.TokenType
	BaseCurrency  string
	QuoteCurrency string
	Rate          decimal.Decimal
	Provider      string
	CapturedAt    time.Time
}

// SnapshotUseCase captures, validates, and persists immutable FX rate
// observations at the two points of a payment's life: pricing time
// (CREATION, best-effort, cache allowed) and booking time (SETTLEMENT,
// authoritative, cache bypassed).
type SnapshotUseCase struct {
	snapshotRepo SnapshotRepository
	outboxRepo   OutboxRepository
	factory      RateFactory
	cache        RateCache
	batchFetcher TokenRateFetcher
	idGen        IDGenerator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewSnapshotUseCase creates a new SnapshotUseCase.
func NewSnapshotUseCase(
	snapshotRepo SnapshotRepository,
	outboxRepo OutboxRepository,
	factory RateFactory,
	cache RateCache,
	batchFetcher TokenRateFetcher,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SnapshotUseCase {
	return &SnapshotUseCase{
		snapshotRepo: snapshotRepo,
		outboxRepo:   outboxRepo,
		factory:      factory,
		cache:        cache,
		batchFetcher: batchFetcher,
		idGen:        idGen,
		metrics:      m,
		logger:       logger.With().Str("component", "fx_snapshots").Logger(),
	}
}

// CreateSnapshot validates, normalizes, and persists one snapshot.
func (uc *SnapshotUseCase) CreateSnapshot(ctx context.Context, input CreateSnapshotInput) (*domain.FXSnapshot, error) {
	snapshot, err := uc.buildSnapshot(input)
	if err != nil {
		return nil, err
	}

	if err := uc.snapshotRepo.Create(ctx, snapshot); err != nil {
		return nil, err
	}

	uc.metrics.IncSnapshot(string(snapshot.SnapshotType))

	return snapshot, nil
}

// CaptureCreationSnapshot records the pricing-time rate for one candidate
// token, serving from the cache when a fresh observation exists.
func (uc *SnapshotUseCase) CaptureCreationSnapshot(ctx context.Context, paymentLinkID string, token domain.TokenType, quoteCurrency string) (*domain.FXSnapshot, error) {
	quote, err := domain.NormalizeCurrency("quoteCurrency", quoteCurrency)
	if err != nil {
		return nil, err
	}

	rate, err := uc.cachedRate(ctx, string(token), quote)
	if err != nil {
		return nil, err
	}

	return uc.CreateSnapshot(ctx, CreateSnapshotInput{
		PaymentLinkID: paymentLinkID,
		SnapshotType:  domain.SnapshotTypeCreation,
		TokenType:     token,
		BaseCurrency:  rate.Base,
		QuoteCurrency: rate.Quote,
		Rate:          rate.Rate,
		Provider:      rate.Provider,
		CapturedAt:    rate.Timestamp,
	})
}

// CaptureAllCreationSnapshots records pricing-time rates for every tracked
// token. The cache is consulted concurrently per token; misses collapse into
// one batched provider round trip. A failing token is skipped with a
// warning, never aborting the others, and all successes are persisted in one
// duplicate-skipping write.
func (uc *SnapshotUseCase) CaptureAllCreationSnapshots(ctx context.Context, paymentLinkID, quoteCurrency string) ([]*domain.FXSnapshot, error) {
	if paymentLinkID == "" {
		return nil, domain.FieldError(domain.KindValidation, "paymentLinkId", "payment link id is required")
	}

	quote, err := domain.NormalizeCurrency("quoteCurrency", quoteCurrency)
	if err != nil {
		return nil, err
	}

	observed := uc.collectTokenRates(ctx, quote)

	snapshots := make([]*domain.FXSnapshot, 0, len(observed))
	for _, token := range domain.TrackedTokens {
		rate, ok := observed[token]
		if !ok {
			uc.logger.Warn().
				Str("payment_link_id", paymentLinkID).
				Str("token", string(token)).
				Msg("skipping creation snapshot, no rate available")
			continue
		}

		snapshot, err := uc.buildSnapshot(CreateSnapshotInput{
			PaymentLinkID: paymentLinkID,
			SnapshotType:  domain.SnapshotTypeCreation,
			TokenType:     token,
			BaseCurrency:  rate.Base,
			QuoteCurrency: rate.Quote,
			Rate:          rate.Rate,
			Provider:      rate.Provider,
			CapturedAt:    rate.Timestamp,
		})
		if err != nil {
			uc.logger.Warn().
				Err(err).
				Str("payment_link_id", paymentLinkID).
				Str("token", string(token)).
				Msg("skipping creation snapshot, validation failed")
			continue
		}

		snapshots = append(snapshots, snapshot)
	}

	if len(snapshots) > 0 {
		inserted, err := uc.snapshotRepo.BulkInsertSkipDuplicates(ctx, snapshots)
		if err != nil {
			return nil, err
		}

		for i := 0; i < inserted; i++ {
			uc.metrics.IncSnapshot(string(domain.SnapshotTypeCreation))
		}
	}

	// The bulk insert does not return identifiers; read back what is
	// actually persisted for this link.
	persisted, err := uc.snapshotRepo.GetByPaymentLink(ctx, paymentLinkID)
	if err != nil {
		return nil, err
	}

	creations := make([]*domain.FXSnapshot, 0, len(persisted))
	for _, snapshot := range persisted {
		if snapshot.SnapshotType == domain.SnapshotTypeCreation {
			creations = append(creations, snapshot)
		}
	}

	return creations, nil
}

// CaptureSettlementSnapshot records the booking-time rate for the token
// actually used. The cache is always bypassed: the booked rate must reflect
// the rate truly in effect at settlement. Provider failure is fatal here.
func (uc *SnapshotUseCase) CaptureSettlementSnapshot(ctx context.Context, paymentLinkID string, token domain.TokenType, quoteCurrency string) (*domain.FXSnapshot, error) {
	quote, err := domain.NormalizeCurrency("quoteCurrency", quoteCurrency)
	if err != nil {
		return nil, err
	}

	rate, err := uc.factory.GetRate(ctx, string(token), quote)
	if err != nil {
		uc.logger.Error().
			Err(err).
			Str("payment_link_id", paymentLinkID).
			Str("token", string(token)).
			Msg("settlement rate capture failed")

		return nil, domain.WrapError(domain.KindProviderUnavailable,
			"cannot capture settlement rate for "+string(token), err)
	}

	return uc.CreateSnapshot(ctx, CreateSnapshotInput{
		PaymentLinkID: paymentLinkID,
		SnapshotType:  domain.SnapshotTypeSettlement,
		TokenType:     token,
		BaseCurrency:  rate.Base,
		QuoteCurrency: rate.Quote,
		Rate:          rate.Rate,
		Provider:      rate.Provider,
		CapturedAt:    rate.Timestamp,
	})
}

// CreateSettlementSnapshotInTx persists a settlement snapshot and its
// payment-settled outbox event inside a caller-supplied transaction, so
// "record the rate" and "record the confirmation" commit or fail together.
func (uc *SnapshotUseCase) CreateSettlementSnapshotInTx(ctx context.Context, tx Transaction, tenantID string, input CreateSnapshotInput) (*domain.FXSnapshot, error) {
	input.SnapshotType = domain.SnapshotTypeSettlement

	snapshot, err := uc.buildSnapshot(input)
	if err != nil {
		return nil, err
	}

	if err := uc.snapshotRepo.CreateTx(ctx, tx, snapshot); err != nil {
		return nil, err
	}

	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   snapshot.PaymentLinkID,
			AggregateType: domain.AggregateTypePaymentLink,
			EventType:     domain.EventTypePaymentSettled,
			Payload: map[string]any{
				"tenant_id":       tenantID,
				"payment_link_id": snapshot.PaymentLinkID,
				"token_type":      string(snapshot.TokenType),
				"rate":            snapshot.Rate.String(),
				"provider":        snapshot.Provider,
			},
			CreatedAt: snapshot.CapturedAt,
		}
		if err := uc.outboxRepo.CreateTx(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	uc.metrics.IncSnapshot(string(domain.SnapshotTypeSettlement))

	return snapshot, nil
}

// CalculateRateVariance returns the drift between the pricing-time and
// booking-time rates for a payment link, or nil when either snapshot is
// missing.
func (uc *SnapshotUseCase) CalculateRateVariance(ctx context.Context, paymentLinkID string, token domain.TokenType) (*domain.RateVariance, error) {
	creation, err := uc.snapshotRepo.GetLatest(ctx, paymentLinkID, domain.SnapshotTypeCreation, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	settlement, err := uc.snapshotRepo.GetLatest(ctx, paymentLinkID, domain.SnapshotTypeSettlement, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	variance := settlement.Rate.Sub(creation.Rate)

	return &domain.RateVariance{
		CreationRate:    creation.Rate,
		SettlementRate:  settlement.Rate,
		Variance:        variance,
		VariancePercent: variance.Div(creation.Rate).Mul(decimal.NewFromInt(100)),
	}, nil
}

// GetSnapshotsForPaymentLink returns all snapshots for a payment link.
func (uc *SnapshotUseCase) GetSnapshotsForPaymentLink(ctx context.Context, paymentLinkID string) ([]*domain.FXSnapshot, error) {
	return uc.snapshotRepo.GetByPaymentLink(ctx, paymentLinkID)
}

// collectTokenRates consults the cache concurrently per token, then resolves
// all misses in one batched provider call and refreshes the cache with the
// results. One token's failure never blocks another's.
func (uc *SnapshotUseCase) collectTokenRates(ctx context.Context, quote string) map[domain.TokenType]*domain.ExchangeRate {
	type slot struct {
		token domain.TokenType
		rate  *domain.ExchangeRate
	}

	slots := make([]slot, len(domain.TrackedTokens))

	var wg sync.WaitGroup
	for i, token := range domain.TrackedTokens {
		wg.Add(1)
		go func(i int, token domain.TokenType) {
			defer wg.Done()

			slots[i].token = token
			if uc.cache == nil {
				return
			}

			cached, err := uc.cache.Get(ctx, string(token), quote)
			if err != nil {
				uc.logger.Warn().Err(err).Str("token", string(token)).Msg("rate cache lookup failed")
				return
			}

			slots[i].rate = cached
		}(i, token)
	}
	wg.Wait()

	observed := make(map[domain.TokenType]*domain.ExchangeRate, len(slots))
	misses := false
	for _, s := range slots {
		if s.rate != nil {
			observed[s.token] = s.rate
		} else {
			misses = true
		}
	}

	if misses && uc.batchFetcher != nil {
		fetched := uc.batchFetcher.FetchTrackedTokenRates(ctx, quote)
		for token, rate := range fetched {
			if _, ok := observed[token]; ok {
				continue
			}

			observed[token] = rate

			if uc.cache != nil {
				if err := uc.cache.Put(ctx, rate); err != nil {
					uc.logger.Warn().Err(err).Str("token", string(token)).Msg("rate cache write failed")
				}
			}
		}
	}

	return observed
}

// cachedRate serves one pair from the cache, falling back to the factory and
// refreshing the cache on a miss.
func (uc *SnapshotUseCase) cachedRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, base, quote)
		if err != nil {
			uc.logger.Warn().Err(err).Str("pair", base+"/"+quote).Msg("rate cache lookup failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	rate, err := uc.factory.GetRate(ctx, base, quote)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Put(ctx, rate); err != nil {
			uc.logger.Warn().Err(err).Str("pair", base+"/"+quote).Msg("rate cache write failed")
		}
	}

	return rate, nil
}

// buildSnapshot validates and normalizes input into a persistable snapshot.
func (uc *SnapshotUseCase) buildSnapshot(input CreateSnapshotInput) (*domain.FXSnapshot, error) {
	if input.PaymentLinkID == "" {
		return nil, domain.FieldError(domain.KindInvalidSnapshot, "paymentLinkId", "payment link id is required")
	}

	if !input.SnapshotType.Valid() {
		return nil, domain.FieldError(domain.KindInvalidSnapshot, "snapshotType", "snapshot type %q is not valid", input.SnapshotType)
	}

	if input.Rate.LessThanOrEqual(decimal.Zero) {
		return nil, domain.FieldError(domain.KindInvalidSnapshot, "rate", "rate must be positive, got %s", input.Rate)
	}

	base, err := domain.NormalizeCurrency("baseCurrency", input.BaseCurrency)
	if err != nil {
		return nil, err
	}

	quote, err := domain.NormalizeCurrency("quoteCurrency", input.QuoteCurrency)
	if err != nil {
		return nil, err
	}

	provider, err := domain.NormalizeProvider(input.Provider)
	if err != nil {
		return nil, err
	}

	capturedAt := input.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	snapshot := &domain.FXSnapshot{
		ID:            uc.idGen.Generate(),
		PaymentLinkID: input.PaymentLinkID,
		SnapshotType:  input.SnapshotType,
		TokenType:     input.TokenType,
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Rate:          input.Rate,
		Provider:      provider,
		CapturedAt:    capturedAt,
	}

	uc.warnOnImplausibleRate(snapshot)

	return snapshot, nil
}

// warnOnImplausibleRate emits advisory warnings for rates that look wrong:
// implausibly tiny or huge values, and pegged pairs drifting more than the
// tolerance from 1.0. Warnings never reject a snapshot.
func (uc *SnapshotUseCase) warnOnImplausibleRate(snapshot *domain.FXSnapshot) {
	if snapshot.Rate.LessThan(minPlausibleRate) || snapshot.Rate.GreaterThan(maxPlausibleRate) {
		uc.metrics.IncSnapshotWarning("implausible_rate")
		uc.logger.Warn().
			Str("payment_link_id", snapshot.PaymentLinkID).
			Str("pair", snapshot.BaseCurrency+"/"+snapshot.QuoteCurrency).
			Str("rate", snapshot.Rate.String()).
			Msg("rate outside plausible bounds")
	}

	reference, pegged := domain.PeggedReferenceCurrency(snapshot.TokenType)
	if pegged && snapshot.QuoteCurrency == reference {
		deviation := snapshot.Rate.Sub(decimal.NewFromInt(1)).Abs()
		if deviation.GreaterThan(pegTolerance) {
			uc.metrics.IncSnapshotWarning("peg_deviation")
			uc.logger.Warn().
				Str("payment_link_id", snapshot.PaymentLinkID).
				Str("token", string(snapshot.TokenType)).
				Str("rate", snapshot.Rate.String()).
				Msg("pegged token deviates from 1:1 reference")
		}
	}
}
