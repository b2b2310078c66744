package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/infrastructure/metrics"
)

// ProvisioningUseCase lazily creates the chart-of-accounts rows a rail needs
// before its first posting for a tenant. Provisioning is idempotent and
// race-safe: two concurrent first settlements for a brand-new tenant may
// both attempt the create, and the loser's unique-constraint violation is
// treated as success.
type ProvisioningUseCase struct {
	accountRepo AccountRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewProvisioningUseCase creates a new ProvisioningUseCase.
func NewProvisioningUseCase(accountRepo AccountRepository, idGen IDGenerator, m *metrics.Metrics, logger zerolog.Logger) *ProvisioningUseCase {
	return &ProvisioningUseCase{
		accountRepo: accountRepo,
		idGen:       idGen,
		metrics:     m,
		logger:      logger.With().Str("component", "provisioner").Logger(),
	}
}

// ProvisionCardAccounts ensures the card rail's accounts exist for a tenant.
func (uc *ProvisioningUseCase) ProvisionCardAccounts(ctx context.Context, tenantID string) error {
	return uc.provision(ctx, tenantID, domain.CardAccountSpecs())
}

// ProvisionTokenAccounts ensures the distributed-ledger rail's accounts
// exist for a tenant, one clearing account per tracked token.
func (uc *ProvisioningUseCase) ProvisionTokenAccounts(ctx context.Context, tenantID string) error {
	return uc.provision(ctx, tenantID, domain.TokenAccountSpecs())
}

// ProvisionBankAccounts ensures the bank-transfer rail's accounts exist for
// a tenant.
func (uc *ProvisioningUseCase) ProvisionBankAccounts(ctx context.Context, tenantID string) error {
	return uc.provision(ctx, tenantID, domain.BankAccountSpecs())
}

func (uc *ProvisioningUseCase) provision(ctx context.Context, tenantID string, specs []domain.AccountSpec) error {
	if tenantID == "" {
		return domain.FieldError(domain.KindValidation, "tenantId", "tenant id is required")
	}

	for _, spec := range specs {
		_, err := uc.accountRepo.GetByTenantAndCode(ctx, tenantID, spec.Code)
		if err == nil {
			continue
		}

		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		account := &domain.LedgerAccount{
			ID:        uc.idGen.Generate(),
			TenantID:  tenantID,
			Code:      spec.Code,
			Name:      spec.Name,
			Type:      spec.Type,
			CreatedAt: time.Now().UTC(),
		}

		err = uc.accountRepo.Create(ctx, account)
		if errors.Is(err, domain.ErrDuplicateKey) {
			// A concurrent provisioner won the race; the row exists.
			continue
		}

		if err != nil {
			return err
		}

		uc.metrics.IncAccountProvisioned()
		uc.logger.Info().
			Str("tenant_id", tenantID).
			Str("code", spec.Code).
			Str("name", spec.Name).
			Msg("ledger account provisioned")
	}

	return nil
}
