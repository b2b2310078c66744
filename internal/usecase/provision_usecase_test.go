package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
	"github.com/iho/railledger/internal/usecase/mocks"
)

func newProvisioner(accountRepo *mocks.MockAccountRepository) *usecase.ProvisioningUseCase {
	return usecase.NewProvisioningUseCase(accountRepo, mocks.NewMockIDGenerator(), nil, zerolog.Nop())
}

func TestProvision_CreatesMissingAccounts(t *testing.T) {
	tests := []struct {
		name      string
		provision func(ctx context.Context, uc *usecase.ProvisioningUseCase) error
		specs     []domain.AccountSpec
	}{
		{
			name: "card rail",
			provision: func(ctx context.Context, uc *usecase.ProvisioningUseCase) error {
				return uc.ProvisionCardAccounts(ctx, "tenant-1")
			},
			specs: domain.CardAccountSpecs(),
		},
		{
			name: "token rail",
			provision: func(ctx context.Context, uc *usecase.ProvisioningUseCase) error {
				return uc.ProvisionTokenAccounts(ctx, "tenant-1")
			},
			specs: domain.TokenAccountSpecs(),
		},
		{
			name: "bank rail",
			provision: func(ctx context.Context, uc *usecase.ProvisioningUseCase) error {
				return uc.ProvisionBankAccounts(ctx, "tenant-1")
			},
			specs: domain.BankAccountSpecs(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accountRepo := mocks.NewMockAccountRepository()
			uc := newProvisioner(accountRepo)

			if err := tt.provision(context.Background(), uc); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, spec := range tt.specs {
				account, err := accountRepo.GetByTenantAndCode(context.Background(), "tenant-1", spec.Code)
				if err != nil {
					t.Fatalf("account %s not provisioned: %v", spec.Code, err)
				}
				if account.Name != spec.Name || account.Type != spec.Type {
					t.Errorf("account %s = %s/%s, want %s/%s",
						spec.Code, account.Name, account.Type, spec.Name, spec.Type)
				}
			}
		})
	}
}

func TestProvision_SecondRunIsNoOp(t *testing.T) {
	accountRepo := mocks.NewMockAccountRepository()
	uc := newProvisioner(accountRepo)

	if err := uc.ProvisionCardAccounts(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	creates := 0
	accountRepo.CreateFunc = func(ctx context.Context, account *domain.LedgerAccount) error {
		creates++
		return nil
	}

	if err := uc.ProvisionCardAccounts(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if creates != 0 {
		t.Errorf("second run issued %d creates, want 0", creates)
	}
}

func TestProvision_LosingTheCreateRaceIsSuccess(t *testing.T) {
	accountRepo := mocks.NewMockAccountRepository()
	uc := newProvisioner(accountRepo)

	// Every lookup misses but every create hits the unique constraint, as if
	// a concurrent provisioner inserted the row between the two calls.
	accountRepo.GetByTenantAndCodeFunc = func(ctx context.Context, tenantID, code string) (*domain.LedgerAccount, error) {
		return nil, domain.NewError(domain.KindNotFound, "account not found")
	}
	accountRepo.CreateFunc = func(ctx context.Context, account *domain.LedgerAccount) error {
		return domain.NewError(domain.KindDuplicateKey, "duplicate key value violates unique constraint")
	}

	if err := uc.ProvisionBankAccounts(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("losing the race must not fail provisioning, got %v", err)
	}
}

func TestProvision_PropagatesUnexpectedErrors(t *testing.T) {
	accountRepo := mocks.NewMockAccountRepository()
	uc := newProvisioner(accountRepo)

	accountRepo.GetByTenantAndCodeFunc = func(ctx context.Context, tenantID, code string) (*domain.LedgerAccount, error) {
		return nil, errors.New("connection refused")
	}

	if err := uc.ProvisionCardAccounts(context.Background(), "tenant-1"); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}

func TestProvision_RequiresTenantID(t *testing.T) {
	uc := newProvisioner(mocks.NewMockAccountRepository())

	err := uc.ProvisionCardAccounts(context.Background(), "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
