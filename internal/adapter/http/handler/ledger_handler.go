package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/railledger/internal/adapter/http/dto"
	"github.com/iho/railledger/internal/usecase"
)

// LedgerHandler serves read access to posted journal entries.
type LedgerHandler struct {
	ledgerUC *usecase.LedgerUseCase
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC *usecase.LedgerUseCase) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// ListByPaymentLink lists all entries booked for a payment link.
func (h *LedgerHandler) ListByPaymentLink(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	paymentLinkID := chi.URLParam(r, "id")
	if paymentLinkID == "" {
		writeError(w, http.StatusBadRequest, "missing payment link ID", "")
		return
	}

	entries, err := h.ledgerUC.GetEntriesForPaymentLink(r.Context(), tenantID, paymentLinkID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// ListByKey lists the entries of one logical batch by idempotency key.
func (h *LedgerHandler) ListByKey(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing 'key' parameter", "")
		return
	}

	entries, err := h.ledgerUC.GetEntriesByIdempotencyKey(r.Context(), tenantID, key)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
