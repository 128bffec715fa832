package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"fba-warehouse/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	// ── Stock ledger ──────────────────────────────────────────────────────────
	r.Route("/api/stock", func(r chi.Router) {
		r.Get("/", h.listStockUnits)
		r.Post("/", h.registerStockUnit)
		r.Get("/{sku}", h.getStockUnit)
		r.Put("/{sku}", h.setStock)
		r.Delete("/{sku}", h.deactivateStockUnit)
		r.Post("/{sku}/adjust", h.adjustStock)
		r.Get("/{sku}/movements", h.stockMovements)
	})

	// ── Shipments ─────────────────────────────────────────────────────────────
	r.Route("/api/shipments", func(r chi.Router) {
		r.Get("/", h.listShipments)
		r.Post("/", h.createShipment)
		r.Post("/from-pack-group", h.createFromPackGroup)
		r.Get("/{ref}", h.getShipment)
		r.Patch("/{ref}", h.updateShipment)
		r.Delete("/{ref}", h.deleteShipment)
		r.Post("/{ref}/boxes", h.addBox)
		r.Post("/{ref}/boxes/{index}/items", h.addItemToBox)
		r.Post("/{ref}/boxes/{index}/duplicate", h.duplicateBox)
		r.Post("/{ref}/finalize", h.finalizeShipment)
		r.Post("/{ref}/ship", h.markShipped)
		r.Post("/{ref}/deliver", h.markDelivered)
		r.Post("/{ref}/cancel", h.cancelShipment)
		r.Get("/{ref}/distribution", h.getDistribution)
		r.Put("/{ref}/distribution", h.applyDistribution)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// userRef identifies the acting user for audit trails. Attribution only; the
// body's user_ref field wins over the X-User-Ref header.
func userRef(r *http.Request, bodyRef string) string {
	if bodyRef != "" {
		return bodyRef
	}
	return r.Header.Get("X-User-Ref")
}
