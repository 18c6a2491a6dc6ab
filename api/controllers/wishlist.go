package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/raritone/session-backend/api/middleware"
	"github.com/raritone/session-backend/api/responses"
	"github.com/raritone/session-backend/api/validators"
	"github.com/raritone/session-backend/internal/cart"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/types"
)

type addWishRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Variant   string `json:"variant"`
}

func WishlistFetch(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap := facade.Snapshot(r.Context())
		responses.WriteSuccess(w, map[string]any{
			"wishlist": snap.Wishlist,
			"degraded": snap.Degraded,
		})
	}
}

func WishlistAdd(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addWishRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snap, err := facade.AddWish(r.Context(), types.NewItemKey(req.ProductID, req.Variant))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"wishlist": snap.Wishlist,
			"degraded": snap.Degraded,
		})
	}
}

func WishlistRemove(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facade, err := manager.Facade(middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := types.NewItemKey(chi.URLParam(r, "productID"), r.URL.Query().Get("variant"))
		snap, err := facade.RemoveWish(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"wishlist": snap.Wishlist,
			"degraded": snap.Degraded,
		})
	}
}
