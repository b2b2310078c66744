package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
	"github.com/iho/railledger/internal/usecase/mocks"
)

type snapshotFixture struct {
	snapshotRepo *mocks.MockSnapshotRepository
	outboxRepo   *mocks.MockOutboxRepository
	factory      *mocks.MockRateFactory
	cache        *mocks.MockRateCache
	fetcher      *mocks.MockTokenRateFetcher
	uc           *usecase.SnapshotUseCase
}

func newSnapshotFixture() *snapshotFixture {
	snapshotRepo := mocks.NewMockSnapshotRepository()
	outboxRepo := mocks.NewMockOutboxRepository()
	factory := mocks.NewMockRateFactory()
	cache := mocks.NewMockRateCache()
	fetcher := mocks.NewMockTokenRateFetcher()

	uc := usecase.NewSnapshotUseCase(
		snapshotRepo,
		outboxRepo,
		factory,
		cache,
		fetcher,
		mocks.NewMockIDGenerator(),
		nil,
		zerolog.Nop(),
	)

	return &snapshotFixture{
		snapshotRepo: snapshotRepo,
		outboxRepo:   outboxRepo,
		factory:      factory,
		cache:        cache,
		fetcher:      fetcher,
		uc:           uc,
	}
}

func tokenRate(token domain.TokenType, rate string) *domain.ExchangeRate {
	return &domain.ExchangeRate{
		Base:      string(token),
		Quote:     "USD",
		Rate:      decimal.RequireFromString(rate),
		Provider:  "coingecko",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCreateSnapshot_NormalizesAndPersists(t *testing.T) {
	f := newSnapshotFixture()

	snapshot, err := f.uc.CreateSnapshot(context.Background(), usecase.CreateSnapshotInput{
		PaymentLinkID: "link-1",
		SnapshotType:  domain.SnapshotTypeCreation,
		TokenType:     domain.TokenXRP,
		BaseCurrency:  "  xrp ",
		QuoteCurrency: "usd",
		Rate:          decimal.RequireFromString("0.52"),
		Provider:      "  coingecko  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.BaseCurrency != "XRP" || snapshot.QuoteCurrency != "USD" {
		t.Errorf("currencies = %s/%s, want XRP/USD", snapshot.BaseCurrency, snapshot.QuoteCurrency)
	}
	if snapshot.Provider != "coingecko" {
		t.Errorf("provider = %q, want coingecko", snapshot.Provider)
	}
	if snapshot.CapturedAt.IsZero() {
		t.Error("captured at should default to now")
	}

	persisted, err := f.snapshotRepo.GetByPaymentLink(context.Background(), "link-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("expected 1 persisted snapshot, got %d", len(persisted))
	}
}

func TestCreateSnapshot_RejectsMalformedInput(t *testing.T) {
	base := usecase.CreateSnapshotInput{
		PaymentLinkID: "link-1",
		SnapshotType:  domain.SnapshotTypeCreation,
		TokenType:     domain.TokenXRP,
		BaseCurrency:  "XRP",
		QuoteCurrency: "USD",
		Rate:          decimal.RequireFromString("0.52"),
		Provider:      "coingecko",
	}

	tests := []struct {
		name      string
		mutate    func(input *usecase.CreateSnapshotInput)
		wantField string
	}{
		{
			name:      "missing payment link",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.PaymentLinkID = "" },
			wantField: "paymentLinkId",
		},
		{
			name:      "unknown snapshot type",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.SnapshotType = "ADJUSTMENT" },
			wantField: "snapshotType",
		},
		{
			name:      "zero rate",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.Rate = decimal.Zero },
			wantField: "rate",
		},
		{
			name:      "negative rate",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.Rate = decimal.RequireFromString("-1") },
			wantField: "rate",
		},
		{
			name:      "currency too short",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.BaseCurrency = "XR" },
			wantField: "baseCurrency",
		},
		{
			name:      "currency too long",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.QuoteCurrency = "ABCDEFGHIJK" },
			wantField: "quoteCurrency",
		},
		{
			name:      "currency with punctuation",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.QuoteCurrency = "US-D" },
			wantField: "quoteCurrency",
		},
		{
			name:      "empty provider",
			mutate:    func(in *usecase.CreateSnapshotInput) { in.Provider = "   " },
			wantField: "provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSnapshotFixture()
			input := base
			tt.mutate(&input)

			_, err := f.uc.CreateSnapshot(context.Background(), input)
			if !errors.Is(err, domain.ErrInvalidSnapshot) {
				t.Fatalf("expected invalid snapshot error, got %v", err)
			}

			var domainErr *domain.Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected *domain.Error, got %T", err)
			}
			if domainErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", domainErr.Field, tt.wantField)
			}

			persisted, _ := f.snapshotRepo.GetByPaymentLink(context.Background(), "link-1")
			if len(persisted) != 0 {
				t.Fatalf("invalid input must persist nothing, got %d", len(persisted))
			}
		})
	}
}

func TestCaptureAllCreationSnapshots_OneProviderOutageSkipsOnlyThatToken(t *testing.T) {
	f := newSnapshotFixture()

	// The batch fetch comes back without XRP, as if its id had an upstream
	// outage. The other three tokens must still be captured.
	f.fetcher.Result = map[domain.TokenType]*domain.ExchangeRate{
		domain.TokenRLUSD: tokenRate(domain.TokenRLUSD, "1.00"),
		domain.TokenUSDC:  tokenRate(domain.TokenUSDC, "0.9998"),
		domain.TokenUSDT:  tokenRate(domain.TokenUSDT, "1.0001"),
	}

	snapshots, err := f.uc.CaptureAllCreationSnapshots(context.Background(), "link-1", "USD")
	if err != nil {
		t.Fatalf("partial provider outage must not fail the capture, got %v", err)
	}

	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
	}

	captured := map[domain.TokenType]bool{}
	for _, snapshot := range snapshots {
		if snapshot.SnapshotType != domain.SnapshotTypeCreation {
			t.Errorf("snapshot type = %s, want CREATION", snapshot.SnapshotType)
		}
		captured[snapshot.TokenType] = true
	}
	if captured[domain.TokenXRP] {
		t.Error("XRP had no rate and must not be captured")
	}
	for _, token := range []domain.TokenType{domain.TokenRLUSD, domain.TokenUSDC, domain.TokenUSDT} {
		if !captured[token] {
			t.Errorf("token %s missing from capture", token)
		}
	}
}

func TestCaptureAllCreationSnapshots_ServesFromCacheAndFetchesOnlyMisses(t *testing.T) {
	f := newSnapshotFixture()

	// XRP is already cached; the batch fetch should only be asked once and
	// its results should land in the cache.
	if err := f.cache.Put(context.Background(), tokenRate(domain.TokenXRP, "0.52")); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	fetchCalls := 0
	f.fetcher.FetchFunc = func(ctx context.Context, quote string) map[domain.TokenType]*domain.ExchangeRate {
		fetchCalls++
		return map[domain.TokenType]*domain.ExchangeRate{
			domain.TokenXRP:   tokenRate(domain.TokenXRP, "0.99"), // must lose to the cached value
			domain.TokenRLUSD: tokenRate(domain.TokenRLUSD, "1.00"),
			domain.TokenUSDC:  tokenRate(domain.TokenUSDC, "1.00"),
			domain.TokenUSDT:  tokenRate(domain.TokenUSDT, "1.00"),
		}
	}

	snapshots, err := f.uc.CaptureAllCreationSnapshots(context.Background(), "link-1", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fetchCalls != 1 {
		t.Errorf("batch fetch calls = %d, want 1", fetchCalls)
	}
	if len(snapshots) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(snapshots))
	}

	for _, snapshot := range snapshots {
		if snapshot.TokenType == domain.TokenXRP && !snapshot.Rate.Equal(decimal.RequireFromString("0.52")) {
			t.Errorf("XRP rate = %s, want cached 0.52", snapshot.Rate)
		}
	}

	cached, err := f.cache.Get(context.Background(), string(domain.TokenUSDC), "USD")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if cached == nil {
		t.Error("fetched USDC rate should be written back to the cache")
	}
}

func TestCaptureAllCreationSnapshots_RetryDoesNotDuplicate(t *testing.T) {
	f := newSnapshotFixture()

	f.fetcher.Result = map[domain.TokenType]*domain.ExchangeRate{
		domain.TokenXRP:   tokenRate(domain.TokenXRP, "0.52"),
		domain.TokenRLUSD: tokenRate(domain.TokenRLUSD, "1.00"),
		domain.TokenUSDC:  tokenRate(domain.TokenUSDC, "1.00"),
		domain.TokenUSDT:  tokenRate(domain.TokenUSDT, "1.00"),
	}

	first, err := f.uc.CaptureAllCreationSnapshots(context.Background(), "link-1", "USD")
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("first capture = %d snapshots, want 4", len(first))
	}

	second, err := f.uc.CaptureAllCreationSnapshots(context.Background(), "link-1", "USD")
	if err != nil {
		t.Fatalf("retry must succeed, got %v", err)
	}
	if len(second) != 4 {
		t.Fatalf("retry should report the 4 existing snapshots, got %d", len(second))
	}

	persisted, _ := f.snapshotRepo.GetByPaymentLink(context.Background(), "link-1")
	if len(persisted) != 4 {
		t.Fatalf("retry must not duplicate rows, got %d", len(persisted))
	}
}

func TestCaptureAllCreationSnapshots_RequiresPaymentLink(t *testing.T) {
	f := newSnapshotFixture()

	_, err := f.uc.CaptureAllCreationSnapshots(context.Background(), "", "USD")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCaptureCreationSnapshot_FallsBackToFactoryOnCacheMiss(t *testing.T) {
	f := newSnapshotFixture()
	f.factory.Rates["XRP/USD"] = tokenRate(domain.TokenXRP, "0.52")

	snapshot, err := f.uc.CaptureCreationSnapshot(context.Background(), "link-1", domain.TokenXRP, "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.SnapshotType != domain.SnapshotTypeCreation {
		t.Errorf("type = %s, want CREATION", snapshot.SnapshotType)
	}
	if f.factory.Calls != 1 {
		t.Errorf("factory calls = %d, want 1", f.factory.Calls)
	}

	cached, err := f.cache.Get(context.Background(), "XRP", "USD")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if cached == nil {
		t.Error("factory result should be written back to the cache")
	}
}

func TestCaptureSettlementSnapshot_BypassesCache(t *testing.T) {
	f := newSnapshotFixture()

	// A stale cached rate must never be booked at settlement.
	if err := f.cache.Put(context.Background(), tokenRate(domain.TokenXRP, "0.40")); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	f.factory.Rates["XRP/USD"] = tokenRate(domain.TokenXRP, "0.55")

	snapshot, err := f.uc.CaptureSettlementSnapshot(context.Background(), "link-1", domain.TokenXRP, "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !snapshot.Rate.Equal(decimal.RequireFromString("0.55")) {
		t.Errorf("settlement rate = %s, want live 0.55", snapshot.Rate)
	}
	if snapshot.SnapshotType != domain.SnapshotTypeSettlement {
		t.Errorf("type = %s, want SETTLEMENT", snapshot.SnapshotType)
	}
	if f.factory.Calls != 1 {
		t.Errorf("factory calls = %d, want 1", f.factory.Calls)
	}
}

func TestCaptureSettlementSnapshot_ProviderFailureIsFatal(t *testing.T) {
	f := newSnapshotFixture()
	f.factory.Err = errors.New("all providers exhausted")

	_, err := f.uc.CaptureSettlementSnapshot(context.Background(), "link-1", domain.TokenXRP, "USD")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable error, got %v", err)
	}

	persisted, _ := f.snapshotRepo.GetByPaymentLink(context.Background(), "link-1")
	if len(persisted) != 0 {
		t.Fatalf("failed capture must persist nothing, got %d", len(persisted))
	}
}

func TestCreateSettlementSnapshotInTx_WritesSnapshotAndEvent(t *testing.T) {
	f := newSnapshotFixture()
	tx := &mocks.MockTransaction{}

	snapshot, err := f.uc.CreateSettlementSnapshotInTx(context.Background(), tx, "tenant-1", usecase.CreateSnapshotInput{
		PaymentLinkID: "link-1",
		TokenType:     domain.TokenUSDC,
		BaseCurrency:  "USDC",
		QuoteCurrency: "USD",
		Rate:          decimal.RequireFromString("0.9999"),
		Provider:      "coingecko",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.SnapshotType != domain.SnapshotTypeSettlement {
		t.Errorf("type = %s, want SETTLEMENT", snapshot.SnapshotType)
	}

	events := f.outboxRepo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != domain.EventTypePaymentSettled {
		t.Errorf("event type = %s, want %s", events[0].EventType, domain.EventTypePaymentSettled)
	}
}

func TestCalculateRateVariance(t *testing.T) {
	seed := func(f *snapshotFixture, snapshotType domain.SnapshotType, rate string, at time.Time) {
		err := f.snapshotRepo.Create(context.Background(), &domain.FXSnapshot{
			ID:            "snap-" + string(snapshotType) + rate,
			PaymentLinkID: "link-1",
			SnapshotType:  snapshotType,
			TokenType:     domain.TokenXRP,
			BaseCurrency:  "XRP",
			QuoteCurrency: "USD",
			Rate:          decimal.RequireFromString(rate),
			Provider:      "coingecko",
			CapturedAt:    at,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing creation snapshot", func(t *testing.T) {
		f := newSnapshotFixture()
		seed(f, domain.SnapshotTypeSettlement, "0.55", t0)

		variance, err := f.uc.CalculateRateVariance(context.Background(), "link-1", domain.TokenXRP)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if variance != nil {
			t.Errorf("variance = %+v, want nil", variance)
		}
	})

	t.Run("missing settlement snapshot", func(t *testing.T) {
		f := newSnapshotFixture()
		seed(f, domain.SnapshotTypeCreation, "0.50", t0)

		variance, err := f.uc.CalculateRateVariance(context.Background(), "link-1", domain.TokenXRP)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if variance != nil {
			t.Errorf("variance = %+v, want nil", variance)
		}
	})

	t.Run("rate moved up ten percent", func(t *testing.T) {
		f := newSnapshotFixture()
		seed(f, domain.SnapshotTypeCreation, "0.50", t0)
		seed(f, domain.SnapshotTypeSettlement, "0.55", t0.Add(time.Hour))

		variance, err := f.uc.CalculateRateVariance(context.Background(), "link-1", domain.TokenXRP)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if variance == nil {
			t.Fatal("expected variance, got nil")
		}

		if !variance.Variance.Equal(decimal.RequireFromString("0.05")) {
			t.Errorf("variance = %s, want 0.05", variance.Variance)
		}
		if !variance.VariancePercent.Equal(decimal.RequireFromString("10")) {
			t.Errorf("variance percent = %s, want 10", variance.VariancePercent)
		}
	})

	t.Run("uses latest snapshot of each type", func(t *testing.T) {
		f := newSnapshotFixture()
		seed(f, domain.SnapshotTypeCreation, "0.40", t0)
		seed(f, domain.SnapshotTypeCreation, "0.50", t0.Add(time.Minute))
		seed(f, domain.SnapshotTypeSettlement, "0.45", t0.Add(time.Hour))

		variance, err := f.uc.CalculateRateVariance(context.Background(), "link-1", domain.TokenXRP)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if variance == nil {
			t.Fatal("expected variance, got nil")
		}
		if !variance.CreationRate.Equal(decimal.RequireFromString("0.50")) {
			t.Errorf("creation rate = %s, want latest 0.50", variance.CreationRate)
		}
	})
}
