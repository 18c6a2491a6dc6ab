package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/raritone/session-backend/api/middleware"
	"github.com/raritone/session-backend/api/responses"
	"github.com/raritone/session-backend/api/validators"
	"github.com/raritone/session-backend/internal/cart"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/types"
)

type addItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Variant   string          `json:"variant"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type setQuantityRequest struct {
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"`
}

func snapshotPayload(s types.Snapshot) map[string]any {
	return map[string]any{
		"snapshot":       s,
		"total_quantity": s.TotalQuantity(),
	}
}

// CartFetch serves the session's current cart view. It never fails: when the
// backing store is unreachable the last-known-good snapshot is returned with
// the degraded flag set.
func CartFetch(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshotPayload(facade.Snapshot(r.Context())))
	}
}

func CartAddItem(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := facade.AddItem(r.Context(), types.NewItemKey(req.ProductID, req.Variant), req.Quantity, req.UnitPrice)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshotPayload(snap))
	}
}

// CartSetQuantity replaces a line's quantity. Zero removes the line.
func CartSetQuantity(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setQuantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := types.NewItemKey(chi.URLParam(r, "productID"), req.Variant)
		snap, err := facade.SetQuantity(r.Context(), key, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshotPayload(snap))
	}
}

func CartRemoveItem(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := types.NewItemKey(chi.URLParam(r, "productID"), r.URL.Query().Get("variant"))
		snap, err := facade.RemoveItem(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshotPayload(snap))
	}
}

func CartClear(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := facade.ClearCart(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshotPayload(snap))
	}
}
