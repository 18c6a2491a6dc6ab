package controllers

import (
	"net/http"

	"go.uber.org/multierr"

	"github.com/raritone/session-backend/api/responses"
	"github.com/raritone/session-backend/pkg/config"
	"github.com/raritone/session-backend/pkg/db"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Raritone-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports whether both stores behind the cart are reachable.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Raritone-Env", cfg.App.Env)

		var err error
		checks := map[string]string{"db": "ok", "redis": "ok"}
		if dbP != nil {
			if pingErr := dbP.Ping(r.Context()); pingErr != nil {
				checks["db"] = "unreachable"
				err = multierr.Append(err, pingErr)
			}
		}
		if redisP != nil {
			if pingErr := redisP.Ping(r.Context()); pingErr != nil {
				checks["redis"] = "unreachable"
				err = multierr.Append(err, pingErr)
			}
		}

		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "readiness check failed"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
