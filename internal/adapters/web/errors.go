package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fba-warehouse/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps core error kinds to HTTP statuses: missing entities to
// 404, state and stock conflicts to 409, bad quantities and shapes to 422.
// Anything unrecognized is a storage or programming fault and stays a logged 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownSKU):
		writeError(w, r, err.Error(), "UNKNOWN_SKU", http.StatusNotFound)
	case errors.Is(err, core.ErrShipmentNotFound):
		writeError(w, r, err.Error(), "SHIPMENT_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrInsufficientStock):
		writeError(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusConflict)
	case errors.Is(err, core.ErrIllegalTransition):
		writeError(w, r, err.Error(), "ILLEGAL_TRANSITION", http.StatusConflict)
	case errors.Is(err, core.ErrDuplicateSKU):
		writeError(w, r, err.Error(), "DUPLICATE_SKU", http.StatusConflict)
	case errors.Is(err, core.ErrStaleShipment):
		writeError(w, r, err.Error(), "WRITE_CONFLICT", http.StatusConflict)
	case errors.Is(err, core.ErrUnknownStatus):
		writeError(w, r, err.Error(), "UNKNOWN_STATUS", http.StatusBadRequest)
	case errors.Is(err, core.ErrNegativeQuantity):
		writeError(w, r, err.Error(), "NEGATIVE_QUANTITY", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrEmptyShipment):
		writeError(w, r, err.Error(), "EMPTY_SHIPMENT", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrInvalidBoxIndex):
		writeError(w, r, err.Error(), "INVALID_BOX_INDEX", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrDimensionMismatch):
		writeError(w, r, err.Error(), "DIMENSION_MISMATCH", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrUnknownBoxSKU):
		writeError(w, r, err.Error(), "UNKNOWN_BOX_SKU", http.StatusUnprocessableEntity)
	default:
		log.Printf("internal error: %v", err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
