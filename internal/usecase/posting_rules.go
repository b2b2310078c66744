package usecase

import (
	"context"
	"fmt"

	"github.com/iho/railledger/internal/domain"
)

// Posting rules translate rail-specific settlement facts into balanced
// journal batches and delegate posting to the ledger. Each rule provisions
// the accounts it needs first, so posting never fails purely because a
// tenant's chart-of-accounts row is missing.

// SettlementPostResult reports the gross leg and, for card settlements, the
// independent fee leg.
type SettlementPostResult struct {
	Gross *PostResult
	Fee   *PostResult
}

// CardPostingRule books card-processor settlements and refunds.
type CardPostingRule struct {
	ledger      *LedgerUseCase
	provisioner *ProvisioningUseCase
}

// NewCardPostingRule creates a new CardPostingRule.
func NewCardPostingRule(ledger *LedgerUseCase, provisioner *ProvisioningUseCase) *CardPostingRule {
	return &CardPostingRule{ledger: ledger, provisioner: provisioner}
}

// PostSettlement books a confirmed card settlement: DR clearing / CR
// receivable for the gross amount, plus DR fee expense / CR clearing when a
// fee is reported. The two pairs carry independent idempotency keys so a
// late-arriving fee detail can post without retouching the gross entries.
func (r *CardPostingRule) PostSettlement(ctx context.Context, settlement domain.CardSettlement) (*SettlementPostResult, error) {
	if err := settlement.Validate(); err != nil {
		return nil, err
	}

	if err := r.provisioner.ProvisionCardAccounts(ctx, settlement.TenantID); err != nil {
		return nil, err
	}

	grossDesc := fmt.Sprintf("Card settlement %s", settlement.TransactionID)
	gross, err := r.ledger.PostJournalEntries(ctx, PostJournalEntriesInput{
		Lines: []domain.JournalLine{
			{
				AccountCode: domain.AccountCodeCardClearing,
				EntryType:   domain.EntryTypeDebit,
				Amount:      settlement.GrossAmount,
				Currency:    settlement.Currency,
				Description: grossDesc,
			},
			{
				AccountCode: domain.AccountCodeReceivable,
				EntryType:   domain.EntryTypeCredit,
				Amount:      settlement.GrossAmount,
				Currency:    settlement.Currency,
				Description: grossDesc,
			},
		},
		PaymentLinkID:  settlement.PaymentLinkID,
		TenantID:       settlement.TenantID,
		IdempotencyKey: "card-settle-" + settlement.TransactionID,
		CorrelationID:  settlement.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	result := &SettlementPostResult{Gross: gross}

	if settlement.FeeAmount.IsPositive() {
		feeDesc := fmt.Sprintf("Card processing fee %s", settlement.TransactionID)
		fee, err := r.ledger.PostJournalEntries(ctx, PostJournalEntriesInput{
			Lines: []domain.JournalLine{
				{
					AccountCode: domain.AccountCodeFeeExpense,
					EntryType:   domain.EntryTypeDebit,
					Amount:      settlement.FeeAmount,
					Currency:    settlement.Currency,
					Description: feeDesc,
				},
				{
					AccountCode: domain.AccountCodeCardClearing,
					EntryType:   domain.EntryTypeCredit,
					Amount:      settlement.FeeAmount,
					Currency:    settlement.Currency,
					Description: feeDesc,
				},
			},
			PaymentLinkID:  settlement.PaymentLinkID,
			TenantID:       settlement.TenantID,
			IdempotencyKey: "card-fee-" + settlement.TransactionID,
			CorrelationID:  settlement.CorrelationID,
		})
		if err != nil {
			return nil, err
		}

		result.Fee = fee
	}

	return result, nil
}

// PostRefund books a card refund as a single gross-only mirror pair:
// DR receivable / CR clearing. Fee reversal is deferred.
func (r *CardPostingRule) PostRefund(ctx context.Context, refund domain.CardRefund) (*PostResult, error) {
	if err := refund.Validate(); err != nil {
		return nil, err
	}

	if err := r.provisioner.ProvisionCardAccounts(ctx, refund.TenantID); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Card refund %s", refund.RefundID)

	return r.ledger.PostJournalEntries(ctx, PostJournalEntriesInput{
		Lines: []domain.JournalLine{
			{
				AccountCode: domain.AccountCodeReceivable,
				EntryType:   domain.EntryTypeDebit,
				Amount:      refund.Amount,
				Currency:    refund.Currency,
				Description: desc,
			},
			{
				AccountCode: domain.AccountCodeCardClearing,
				EntryType:   domain.EntryTypeCredit,
				Amount:      refund.Amount,
				Currency:    refund.Currency,
				Description: desc,
			},
		},
		PaymentLinkID:  refund.PaymentLinkID,
		TenantID:       refund.TenantID,
		IdempotencyKey: "card-refund-" + refund.RefundID,
		CorrelationID:  refund.CorrelationID,
	})
}

// TokenPostingRule books distributed-ledger settlements into the token's own
// clearing account.
type TokenPostingRule struct {
	ledger      *LedgerUseCase
	provisioner *ProvisioningUseCase
}

// NewTokenPostingRule creates a new TokenPostingRule.
func NewTokenPostingRule(ledger *LedgerUseCase, provisioner *ProvisioningUseCase) *TokenPostingRule {
	return &TokenPostingRule{ledger: ledger, provisioner: provisioner}
}

// PostSettlement books a confirmed token transfer: DR token clearing / CR
// receivable, amount already expressed in the invoice currency. The token to
// account mapping is re-validated immediately before any entries are built,
// independently of the lookup, so funds can never land in another token's
// clearing account.
func (r *TokenPostingRule) PostSettlement(ctx context.Context, settlement domain.TokenSettlement) (*PostResult, error) {
	if err := settlement.Validate(); err != nil {
		return nil, err
	}

	clearingCode, err := domain.ClearingAccountForToken(settlement.Token)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateTokenAccountMapping(settlement.Token, clearingCode); err != nil {
		return nil, err
	}

	if err := r.provisioner.ProvisionTokenAccounts(ctx, settlement.TenantID); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("%s settlement %s", settlement.Token, settlement.TransferID)

	return r.ledger.PostJournalEntries(ctx, PostJournalEntriesInput{
		Lines: []domain.JournalLine{
			{
				AccountCode: clearingCode,
				EntryType:   domain.EntryTypeDebit,
				Amount:      settlement.Amount,
				Currency:    settlement.Currency,
				Description: desc,
			},
			{
				AccountCode: domain.AccountCodeReceivable,
				EntryType:   domain.EntryTypeCredit,
				Amount:      settlement.Amount,
				Currency:    settlement.Currency,
				Description: desc,
			},
		},
		PaymentLinkID:  settlement.PaymentLinkID,
		TenantID:       settlement.TenantID,
		IdempotencyKey: fmt.Sprintf("token-settle-%s-%s", settlement.Token, settlement.TransferID),
		CorrelationID:  settlement.CorrelationID,
	})
}

// BankPostingRule books bank-transfer settlements.
type BankPostingRule struct {
	ledger      *LedgerUseCase
	provisioner *ProvisioningUseCase
}

// NewBankPostingRule creates a new BankPostingRule.
func NewBankPostingRule(ledger *LedgerUseCase, provisioner *ProvisioningUseCase) *BankPostingRule {
	return &BankPostingRule{ledger: ledger, provisioner: provisioner}
}

// PostSettlement books a confirmed bank transfer: DR bank clearing / CR
// receivable for the gross amount.
func (r *BankPostingRule) PostSettlement(ctx context.Context, settlement domain.BankSettlement) (*PostResult, error) {
	if err := settlement.Validate(); err != nil {
		return nil, err
	}

	if err := r.provisioner.ProvisionBankAccounts(ctx, settlement.TenantID); err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Bank transfer settlement %s", settlement.TransferID)

	return r.ledger.PostJournalEntries(ctx, PostJournalEntriesInput{
		Lines: []domain.JournalLine{
			{
				AccountCode: domain.AccountCodeBankClearing,
				EntryType:   domain.EntryTypeDebit,
				Amount:      settlement.Amount,
				Currency:    settlement.Currency,
				Description: desc,
			},
			{
				AccountCode: domain.AccountCodeReceivable,
				EntryType:   domain.EntryTypeCredit,
				Amount:      settlement.Amount,
				Currency:    settlement.Currency,
				Description: desc,
			},
		},
		PaymentLinkID:  settlement.PaymentLinkID,
		TenantID:       settlement.TenantID,
		IdempotencyKey: "bank-settle-" + settlement.TransferID,
		CorrelationID:  settlement.CorrelationID,
	})
}
