package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	adapterhttp "github.com/iho/railledger/internal/adapter/http"
	"github.com/iho/railledger/internal/adapter/http/handler"
	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/rates"
	"github.com/iho/railledger/internal/usecase"
	"github.com/iho/railledger/internal/usecase/mocks"
)

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockEntryRepository, *mocks.MockSnapshotRepository) {
	t.Helper()

	accountRepo := mocks.NewMockAccountRepository()
	entryRepo := mocks.NewMockEntryRepository()
	snapshotRepo := mocks.NewMockSnapshotRepository()
	idGen := mocks.NewMockIDGenerator()
	logger := zerolog.Nop()

	ledgerUC := usecase.NewLedgerUseCase(
		mocks.NewMockTransactionManager(), accountRepo, entryRepo,
		mocks.NewMockOutboxRepository(), idGen, nil, logger,
	)
	snapshotUC := usecase.NewSnapshotUseCase(
		snapshotRepo, nil, mocks.NewMockRateFactory(), mocks.NewMockRateCache(),
		mocks.NewMockTokenRateFetcher(), idGen, nil, logger,
	)
	provisionUC := usecase.NewProvisioningUseCase(accountRepo, idGen, nil, logger)

	router := adapterhttp.NewRouter(adapterhttp.RouterConfig{
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		SnapshotHandler:  handler.NewSnapshotHandler(snapshotUC),
		RateHandler:      handler.NewRateHandler(rates.NewFactory(nil, logger), nil),
		ProvisionHandler: handler.NewProvisionHandler(provisionUC),
		HealthHandler:    handler.NewHealthHandler(nil, nil, nil),
		Logger:           logger,
	})

	return router, entryRepo, snapshotRepo
}

func seedEntry(t *testing.T, entryRepo *mocks.MockEntryRepository, key string) {
	t.Helper()

	_, err := entryRepo.BulkInsertTx(context.Background(), &mocks.MockTransaction{}, []*domain.LedgerEntry{
		{
			ID:             "entry-" + key,
			TenantID:       "tenant-1",
			AccountID:      "acc-1050",
			AccountCode:    domain.AccountCodeCardClearing,
			AccountName:    "Card Clearing",
			PaymentLinkID:  "link-1",
			EntryType:      domain.EntryTypeDebit,
			Amount:         decimal.RequireFromString("100.00"),
			Currency:       "USD",
			IdempotencyKey: key,
			CreatedAt:      time.Now().UTC(),
		},
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestRouterEntriesByPaymentLink(t *testing.T) {
	router, entryRepo, _ := newTestRouter(t)
	seedEntry(t, entryRepo, "card-settle-txn-1-0")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-links/link-1/entries", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(body))
	}
	if body[0]["account_code"] != domain.AccountCodeCardClearing {
		t.Errorf("account_code = %v, want %s", body[0]["account_code"], domain.AccountCodeCardClearing)
	}
}

func TestRouterEntriesRequireTenantHeader(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-links/link-1/entries", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRouterEntriesByKey(t *testing.T) {
	router, entryRepo, _ := newTestRouter(t)
	seedEntry(t, entryRepo, "bank-settle-wire-1-0")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entries?key=bank-settle-wire-1", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(body))
	}
}

func TestRouterVarianceNullWhenIncomplete(t *testing.T) {
	router, _, snapshotRepo := newTestRouter(t)

	err := snapshotRepo.Create(context.Background(), &domain.FXSnapshot{
		ID:            "snap-1",
		PaymentLinkID: "link-1",
		SnapshotType:  domain.SnapshotTypeCreation,
		TokenType:     domain.TokenXRP,
		BaseCurrency:  "XRP",
		QuoteCurrency: "USD",
		Rate:          decimal.RequireFromString("0.52"),
		Provider:      "coingecko",
		CapturedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-links/link-1/variance?token=XRP", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "null\n" {
		t.Errorf("body = %q, want JSON null", got)
	}
}

func TestRouterProvision(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/tenant-1/provision?rail=token", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	codes, _ := body["codes"].([]any)
	if len(codes) != len(domain.TokenAccountSpecs()) {
		t.Errorf("codes = %v, want %d token rail accounts", codes, len(domain.TokenAccountSpecs()))
	}
}

func TestRouterProvisionRejectsUnknownRail(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/tenant-1/provision?rail=crypto", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRouterRateUnresolvablePairIsBadGateway(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rates/XRP/USD", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}
