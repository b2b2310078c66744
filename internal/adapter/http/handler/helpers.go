package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/railledger/internal/adapter/http/dto"
	"github.com/iho/railledger/internal/domain"
)

// tenantHeader scopes reads and provisioning to one tenant.
const tenantHeader = "X-Tenant-ID"

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps a domain error to an HTTP response, carrying the
// offending field for validation failures.
func writeDomainError(w http.ResponseWriter, err error) {
	status := mapDomainError(err)

	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(dto.ErrorResponse{
			Error:   string(domainErr.Kind),
			Message: domainErr.Message,
			Field:   domainErr.Field,
		})
		return
	}

	writeError(w, status, "internal error", err.Error())
}

// mapDomainError maps domain error kinds to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnbalanced),
		errors.Is(err, domain.ErrInvalidSnapshot):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMissingAccount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requireTenant extracts the tenant header, writing a 400 when absent.
func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "missing tenant", tenantHeader+" header is required")
		return "", false
	}

	return tenantID, true
}
