package web

import (
	"net/http"
	"strconv"

	"fba-warehouse/internal/app"

	"github.com/go-chi/chi/v5"
)

// listShipments handles GET /api/shipments?status=draft.
func (h *Handler) listShipments(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListShipments(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// getShipment handles GET /api/shipments/{ref}. ref is a numeric ID or shipment code.
func (h *Handler) getShipment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetShipment(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createShipment handles POST /api/shipments.
func (h *Handler) createShipment(w http.ResponseWriter, r *http.Request) {
	var req app.CreateShipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Destination == "" {
		writeError(w, r, "destination is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.CreateShipment(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createFromPackGroup handles POST /api/shipments/from-pack-group.
func (h *Handler) createFromPackGroup(w http.ResponseWriter, r *http.Request) {
	var req app.PackGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Destination == "" {
		writeError(w, r, "destination is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.CreateFromPackGroup(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// updateShipment handles PATCH /api/shipments/{ref}.
func (h *Handler) updateShipment(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateShipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.UpdateShipmentDetails(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// deleteShipment handles DELETE /api/shipments/{ref}. Draft shipments only.
func (h *Handler) deleteShipment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteShipment(r.Context(), chi.URLParam(r, "ref"), userRef(r, "")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

// addBox handles POST /api/shipments/{ref}/boxes.
func (h *Handler) addBox(w http.ResponseWriter, r *http.Request) {
	var req app.AddBoxRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.AddBox(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func boxIndexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, "box index must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return idx, true
}

// addItemToBox handles POST /api/shipments/{ref}/boxes/{index}/items.
func (h *Handler) addItemToBox(w http.ResponseWriter, r *http.Request) {
	idx, ok := boxIndexParam(w, r)
	if !ok {
		return
	}
	var req app.AddItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.BoxIndex = idx
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.AddItemToBox(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// duplicateBox handles POST /api/shipments/{ref}/boxes/{index}/duplicate.
func (h *Handler) duplicateBox(w http.ResponseWriter, r *http.Request) {
	idx, ok := boxIndexParam(w, r)
	if !ok {
		return
	}
	var req app.DuplicateBoxRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.BoxIndex = idx
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.DuplicateBox(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// finalizeShipment handles POST /api/shipments/{ref}/finalize.
func (h *Handler) finalizeShipment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.FinalizeShipment(r.Context(), chi.URLParam(r, "ref"), userRef(r, ""))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// markShipped handles POST /api/shipments/{ref}/ship.
func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	var req app.ShipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.MarkShipmentShipped(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// markDelivered handles POST /api/shipments/{ref}/deliver.
func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	var req app.DeliverRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.MarkShipmentDelivered(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// cancelShipment handles POST /api/shipments/{ref}/cancel.
func (h *Handler) cancelShipment(w http.ResponseWriter, r *http.Request) {
	var req app.CancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.CancelShipment(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// getDistribution handles GET /api/shipments/{ref}/distribution.
func (h *Handler) getDistribution(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetDistribution(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// applyDistribution handles PUT /api/shipments/{ref}/distribution.
func (h *Handler) applyDistribution(w http.ResponseWriter, r *http.Request) {
	var req app.ApplyDistributionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Edits) == 0 {
		writeError(w, r, "at least one edit is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	req.Ref = chi.URLParam(r, "ref")
	req.UserRef = userRef(r, req.UserRef)

	result, err := h.svc.ApplyDistribution(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}
