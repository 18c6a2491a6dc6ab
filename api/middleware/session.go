package middleware

import (
	"net/http"

	"github.com/raritone/session-backend/api/responses"
	"github.com/raritone/session-backend/api/validators"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
)

const (
	sessionIDHeader = "X-Session-Id"
	sessionIDMaxLen = 128
)

// Session requires the storefront's session header and seeds the request
// context with it. Every cart and wishlist route is scoped to this id.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := validators.SanitizeString(r.Header.Get(sessionIDHeader), sessionIDMaxLen)
			if sessionID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing session id header"))
				return
			}

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
