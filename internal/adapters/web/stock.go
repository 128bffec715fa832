package web

import (
	"net/http"

	"fba-warehouse/internal/app"

	"github.com/go-chi/chi/v5"
)

// listStockUnits handles GET /api/stock.
func (h *Handler) listStockUnits(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListStockUnits(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// getStockUnit handles GET /api/stock/{sku}.
func (h *Handler) getStockUnit(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockUnit(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// registerStockUnit handles POST /api/stock.
func (h *Handler) registerStockUnit(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterStockUnitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SKU == "" {
		writeError(w, r, "sku is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, r, "name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.RegisterStockUnit(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// setStock handles PUT /api/stock/{sku}.
func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	var req app.SetStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SKU = chi.URLParam(r, "sku")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.SetStock(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// adjustStock handles POST /api/stock/{sku}/adjust.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		writeError(w, r, "delta must be non-zero", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.SKU = chi.URLParam(r, "sku")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// deactivateStockUnit handles DELETE /api/stock/{sku}.
func (h *Handler) deactivateStockUnit(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateStockUnit(r.Context(), chi.URLParam(r, "sku"), userRef(r, "")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deactivated"})
}

// stockMovements handles GET /api/stock/{sku}/movements.
func (h *Handler) stockMovements(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockMovements(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}
