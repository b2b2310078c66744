package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/railledger/internal/adapter/http/dto"
	"github.com/iho/railledger/internal/rates"
	"github.com/iho/railledger/internal/usecase"
)

// RateHandler serves live rate lookups for operators and pricing previews.
// These reads are never authoritative for booking.
type RateHandler struct {
	factory *rates.Factory
	cache   usecase.RateCache
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(factory *rates.Factory, cache usecase.RateCache) *RateHandler {
	return &RateHandler{factory: factory, cache: cache}
}

// Get resolves one pair. With ?cached=true a fresh cache entry is served
// without touching providers; otherwise the provider chain is consulted.
func (h *RateHandler) Get(w http.ResponseWriter, r *http.Request) {
	base := chi.URLParam(r, "base")
	quote := chi.URLParam(r, "quote")
	if base == "" || quote == "" {
		writeError(w, http.StatusBadRequest, "missing base or quote currency", "")
		return
	}

	if r.URL.Query().Get("cached") == "true" && h.cache != nil {
		cached, err := h.cache.Get(r.Context(), base, quote)
		if err == nil && cached != nil {
			writeJSON(w, http.StatusOK, dto.RateFromDomain(cached, true))
			return
		}
	}

	rate, err := h.factory.GetRate(r.Context(), base, quote)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.cache != nil {
		_ = h.cache.Put(r.Context(), rate)
	}

	writeJSON(w, http.StatusOK, dto.RateFromDomain(rate, false))
}
