package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/railledger/internal/adapter/http/dto"
	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
)

// ProvisionHandler ensures a tenant's chart-of-accounts rows exist for a
// rail, ahead of the lazy provisioning the posting path performs anyway.
type ProvisionHandler struct {
	provisionUC *usecase.ProvisioningUseCase
}

// NewProvisionHandler creates a new ProvisionHandler.
func NewProvisionHandler(provisionUC *usecase.ProvisioningUseCase) *ProvisionHandler {
	return &ProvisionHandler{provisionUC: provisionUC}
}

// Provision provisions the accounts of one rail for a tenant.
func (h *ProvisionHandler) Provision(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenant ID", "")
		return
	}

	rail := r.URL.Query().Get("rail")

	var (
		err   error
		specs []domain.AccountSpec
	)

	switch rail {
	case "card":
		specs = domain.CardAccountSpecs()
		err = h.provisionUC.ProvisionCardAccounts(r.Context(), tenantID)
	case "token":
		specs = domain.TokenAccountSpecs()
		err = h.provisionUC.ProvisionTokenAccounts(r.Context(), tenantID)
	case "bank":
		specs = domain.BankAccountSpecs()
		err = h.provisionUC.ProvisionBankAccounts(r.Context(), tenantID)
	default:
		writeError(w, http.StatusBadRequest, "invalid rail", "rail must be one of card, token, bank")
		return
	}

	if err != nil {
		writeDomainError(w, err)
		return
	}

	codes := make([]string, len(specs))
	for i, spec := range specs {
		codes[i] = spec.Code
	}

	writeJSON(w, http.StatusOK, dto.ProvisionResponse{
		TenantID: tenantID,
		Rail:     rail,
		Codes:    codes,
	})
}
