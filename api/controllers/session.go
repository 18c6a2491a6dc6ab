package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/raritone/session-backend/api/middleware"
	"github.com/raritone/session-backend/api/responses"
	"github.com/raritone/session-backend/internal/cart"
	"github.com/raritone/session-backend/internal/reconcile"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
)

func authenticatedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user id")
	}
	return userID, nil
}

// SessionLoginCompleted reconciles the guest cart into the authenticated
// user's account cart and re-points the session facade at the durable store.
func SessionLoginCompleted(engine *reconcile.Engine, manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := middleware.SessionIDFromContext(r.Context())
		result, err := engine.LoginCompleted(r.Context(), sessionID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// A coalesced duplicate carries no outcome of its own; the winning
		// login event reports the merge result.
		if result.Coalesced {
			responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
				"coalesced": true,
			})
			return
		}

		if result.Outcome != reconcile.OutcomeFailed {
			facade, ferr := manager.Facade(sessionID)
			if ferr != nil {
				responses.WriteError(r.Context(), logg, w, ferr)
				return
			}
			facade.SetAuthenticated(userID, result.State)
		}

		capped := make([]string, 0, len(result.CappedKeys))
		for _, key := range result.CappedKeys {
			capped = append(capped, key.String())
		}

		responses.WriteSuccess(w, map[string]any{
			"outcome":     string(result.Outcome),
			"capped_keys": capped,
			"cart":        result.State.Cart.Lines(),
			"wishlist":    result.State.Wishlist.Keys(),
		})
	}
}

// SessionLoggedOut resets the guest session. The account cart is untouched.
func SessionLoggedOut(engine *reconcile.Engine, manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())
		if err := engine.LoggedOut(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facade, err := manager.Facade(sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		facade.SetAnonymous()

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// SessionSwitch re-points the session at a different account. Any guest cart
// pending for the previous user is discarded, never cross-merged.
func SessionSwitch(engine *reconcile.Engine, manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := middleware.SessionIDFromContext(r.Context())
		state, err := engine.SwitchAccount(r.Context(), sessionID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		facade, err := manager.Facade(sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		facade.SetAuthenticated(userID, state)

		responses.WriteSuccess(w, map[string]any{
			"cart":     state.Cart.Lines(),
			"wishlist": state.Wishlist.Keys(),
		})
	}
}
