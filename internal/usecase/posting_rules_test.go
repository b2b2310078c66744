package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
	"github.com/iho/railledger/internal/usecase/mocks"
)

type rulesFixture struct {
	*ledgerFixture
	card  *usecase.CardPostingRule
	token *usecase.TokenPostingRule
	bank  *usecase.BankPostingRule
}

func newRulesFixture() *rulesFixture {
	f := newLedgerFixture()
	provisioner := usecase.NewProvisioningUseCase(f.accountRepo, mocks.NewMockIDGenerator(), nil, zerolog.Nop())

	return &rulesFixture{
		ledgerFixture: f,
		card:          usecase.NewCardPostingRule(f.ledger, provisioner),
		token:         usecase.NewTokenPostingRule(f.ledger, provisioner),
		bank:          usecase.NewBankPostingRule(f.ledger, provisioner),
	}
}

// netBalance sums debits minus credits for one account code.
func netBalance(entries []*domain.LedgerEntry, code string) decimal.Decimal {
	net := decimal.Zero
	for _, entry := range entries {
		if entry.AccountCode != code {
			continue
		}
		if entry.EntryType == domain.EntryTypeDebit {
			net = net.Add(entry.Amount)
		} else {
			net = net.Sub(entry.Amount)
		}
	}
	return net
}

func TestCardPostSettlement_GrossAndFeeLegs(t *testing.T) {
	f := newRulesFixture()

	result, err := f.card.PostSettlement(context.Background(), domain.CardSettlement{
		TenantID:      "tenant-1",
		PaymentLinkID: "link-1",
		TransactionID: "txn-1",
		GrossAmount:   decimal.RequireFromString("103.20"),
		FeeAmount:     decimal.RequireFromString("3.20"),
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Gross.Status != usecase.StatusPosted {
		t.Errorf("gross status = %s, want posted", result.Gross.Status)
	}
	if result.Fee == nil || result.Fee.Status != usecase.StatusPosted {
		t.Errorf("fee leg should be posted, got %+v", result.Fee)
	}

	entries := f.entryRepo.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	// Gross and fee legs net out to the actual cash position.
	if net := netBalance(entries, domain.AccountCodeCardClearing); !net.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("clearing net = %s, want 100.00", net)
	}
	if net := netBalance(entries, domain.AccountCodeReceivable); !net.Equal(decimal.RequireFromString("-103.20")) {
		t.Errorf("receivable net = %s, want -103.20", net)
	}
	if net := netBalance(entries, domain.AccountCodeFeeExpense); !net.Equal(decimal.RequireFromString("3.20")) {
		t.Errorf("fee expense net = %s, want 3.20", net)
	}

	keys := map[string]bool{}
	for _, entry := range entries {
		keys[entry.IdempotencyKey] = true
	}
	for _, want := range []string{"card-settle-txn-1-0", "card-settle-txn-1-1", "card-fee-txn-1-0", "card-fee-txn-1-1"} {
		if !keys[want] {
			t.Errorf("missing derived key %s", want)
		}
	}
}

func TestCardPostSettlement_ZeroFeeSkipsFeeLeg(t *testing.T) {
	f := newRulesFixture()

	result, err := f.card.PostSettlement(context.Background(), domain.CardSettlement{
		TenantID:      "tenant-1",
		PaymentLinkID: "link-1",
		TransactionID: "txn-2",
		GrossAmount:   decimal.RequireFromString("50.00"),
		FeeAmount:     decimal.Zero,
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Fee != nil {
		t.Errorf("expected no fee leg, got %+v", result.Fee)
	}
	if entries := f.entryRepo.All(); len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestCardPostSettlement_RetryIsIdempotent(t *testing.T) {
	f := newRulesFixture()

	settlement := domain.CardSettlement{
		TenantID:      "tenant-1",
		PaymentLinkID: "link-1",
		TransactionID: "txn-3",
		GrossAmount:   decimal.RequireFromString("103.20"),
		FeeAmount:     decimal.RequireFromString("3.20"),
		Currency:      "USD",
	}

	if _, err := f.card.PostSettlement(context.Background(), settlement); err != nil {
		t.Fatalf("first post: %v", err)
	}

	retry, err := f.card.PostSettlement(context.Background(), settlement)
	if err != nil {
		t.Fatalf("retry must succeed, got %v", err)
	}
	if retry.Gross.Status != usecase.StatusDuplicate {
		t.Errorf("gross retry status = %s, want duplicate", retry.Gross.Status)
	}
	if retry.Fee.Status != usecase.StatusDuplicate {
		t.Errorf("fee retry status = %s, want duplicate", retry.Fee.Status)
	}
	if entries := f.entryRepo.All(); len(entries) != 4 {
		t.Fatalf("retry must not add entries, got %d", len(entries))
	}
}

func TestCardPostRefund(t *testing.T) {
	f := newRulesFixture()

	result, err := f.card.PostRefund(context.Background(), domain.CardRefund{
		TenantID:      "tenant-1",
		PaymentLinkID: "link-1",
		RefundID:      "ref-1",
		Amount:        decimal.RequireFromString("40.00"),
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != usecase.StatusPosted {
		t.Fatalf("status = %s, want posted", result.Status)
	}

	entries := f.entryRepo.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if net := netBalance(entries, domain.AccountCodeReceivable); !net.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("receivable net = %s, want 40.00", net)
	}
	if net := netBalance(entries, domain.AccountCodeCardClearing); !net.Equal(decimal.RequireFromString("-40.00")) {
		t.Errorf("clearing net = %s, want -40.00", net)
	}
}

func TestTokenPostSettlement_UsesTokenOwnClearingAccount(t *testing.T) {
	for _, token := range domain.TrackedTokens {
		t.Run(string(token), func(t *testing.T) {
			f := newRulesFixture()

			result, err := f.token.PostSettlement(context.Background(), domain.TokenSettlement{
				TenantID:      "tenant-1",
				PaymentLinkID: "link-1",
				TransferID:    "xfer-1",
				Token:         token,
				Amount:        decimal.RequireFromString("200.00"),
				Currency:      "USD",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != usecase.StatusPosted {
				t.Fatalf("status = %s, want posted", result.Status)
			}

			entries := f.entryRepo.All()
			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}

			expectedCode, err := domain.ClearingAccountForToken(token)
			if err != nil {
				t.Fatalf("clearing account: %v", err)
			}
			if net := netBalance(entries, expectedCode); !net.Equal(decimal.RequireFromString("200.00")) {
				t.Errorf("clearing %s net = %s, want 200.00", expectedCode, net)
			}

			// No other token's clearing account may be touched.
			for _, other := range domain.TrackedTokens {
				if other == token {
					continue
				}
				otherCode, _ := domain.ClearingAccountForToken(other)
				if net := netBalance(entries, otherCode); !net.IsZero() {
					t.Errorf("token %s leaked into %s clearing account", token, other)
				}
			}

			wantKey := fmt.Sprintf("token-settle-%s-xfer-1-0", token)
			found := false
			for _, entry := range entries {
				if entry.IdempotencyKey == wantKey {
					found = true
				}
			}
			if !found {
				t.Errorf("missing derived key %s", wantKey)
			}
		})
	}
}

func TestTokenPostSettlement_UnknownTokenFailsClosed(t *testing.T) {
	f := newRulesFixture()

	_, err := f.token.PostSettlement(context.Background(), domain.TokenSettlement{
		TenantID:      "tenant-1",
		PaymentLinkID: "link-1",
		TransferID:    "xfer-2",
		Token:         "DOGE",
		Amount:        decimal.RequireFromString("10.00"),
		Currency:      "USD",
	})
	if !errors.Is(err, domain.ErrMissingAccount) {
		t.Fatalf("expected missing account error, got %v", err)
	}
	if entries := f.entryRepo.All(); len(entries) != 0 {
		t.Fatalf("unknown token must persist nothing, got %d entries", len(entries))
	}
}

func TestBankPostSettlement(t *testing.T) {
	f := newRulesFixture()

	result, err := f.bank.PostSettlement(context.Background(), domain.BankSettlement{
		TenantID:      "tenant-1",
		PaymentLinkID: "link-1",
		TransferID:    "wire-1",
		Amount:        decimal.RequireFromString("500.00"),
		Currency:      "EUR",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != usecase.StatusPosted {
		t.Fatalf("status = %s, want posted", result.Status)
	}

	entries := f.entryRepo.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if net := netBalance(entries, domain.AccountCodeBankClearing); !net.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("bank clearing net = %s, want 500.00", net)
	}
	for _, entry := range entries {
		if entry.Currency != "EUR" {
			t.Errorf("entry currency = %s, want EUR", entry.Currency)
		}
	}
}

func TestPostSettlement_RejectsInvalidFacts(t *testing.T) {
	f := newRulesFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		post func() error
	}{
		{
			name: "card zero gross",
			post: func() error {
				_, err := f.card.PostSettlement(ctx, domain.CardSettlement{
					TenantID:      "tenant-1",
					TransactionID: "txn-bad",
					GrossAmount:   decimal.Zero,
					Currency:      "USD",
				})
				return err
			},
		},
		{
			name: "card negative fee",
			post: func() error {
				_, err := f.card.PostSettlement(ctx, domain.CardSettlement{
					TenantID:      "tenant-1",
					TransactionID: "txn-bad",
					GrossAmount:   decimal.RequireFromString("10.00"),
					FeeAmount:     decimal.RequireFromString("-1.00"),
					Currency:      "USD",
				})
				return err
			},
		},
		{
			name: "token missing transfer id",
			post: func() error {
				_, err := f.token.PostSettlement(ctx, domain.TokenSettlement{
					TenantID: "tenant-1",
					Token:    domain.TokenXRP,
					Amount:   decimal.RequireFromString("10.00"),
					Currency: "USD",
				})
				return err
			},
		},
		{
			name: "bank missing tenant",
			post: func() error {
				_, err := f.bank.PostSettlement(ctx, domain.BankSettlement{
					TransferID: "wire-bad",
					Amount:     decimal.RequireFromString("10.00"),
					Currency:   "USD",
				})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.post(); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if entries := f.entryRepo.All(); len(entries) != 0 {
		t.Fatalf("invalid facts must persist nothing, got %d entries", len(entries))
	}
}
