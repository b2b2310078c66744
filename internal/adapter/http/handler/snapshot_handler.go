package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/railledger/internal/adapter/http/dto"
	"github.com/iho/railledger/internal/domain"
	"github.com/iho/railledger/internal/usecase"
)

// SnapshotHandler serves read access to FX snapshots and rate variance.
type SnapshotHandler struct {
	snapshotUC *usecase.SnapshotUseCase
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshotUC *usecase.SnapshotUseCase) *SnapshotHandler {
	return &SnapshotHandler{snapshotUC: snapshotUC}
}

// ListByPaymentLink lists all snapshots captured for a payment link.
func (h *SnapshotHandler) ListByPaymentLink(w http.ResponseWriter, r *http.Request) {
	paymentLinkID := chi.URLParam(r, "id")
	if paymentLinkID == "" {
		writeError(w, http.StatusBadRequest, "missing payment link ID", "")
		return
	}

	snapshots, err := h.snapshotUC.GetSnapshotsForPaymentLink(r.Context(), paymentLinkID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotsFromDomain(snapshots))
}

// GetVariance returns the creation-to-settlement rate drift for a payment
// link. The body is JSON null until both snapshots exist.
func (h *SnapshotHandler) GetVariance(w http.ResponseWriter, r *http.Request) {
	paymentLinkID := chi.URLParam(r, "id")
	if paymentLinkID == "" {
		writeError(w, http.StatusBadRequest, "missing payment link ID", "")
		return
	}

	token := domain.TokenType(r.URL.Query().Get("token"))

	variance, err := h.snapshotUC.CalculateRateVariance(r.Context(), paymentLinkID, token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.VarianceFromDomain(variance))
}
