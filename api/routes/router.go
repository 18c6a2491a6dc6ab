package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raritone/session-backend/api/controllers"
	"github.com/raritone/session-backend/api/middleware"
	"github.com/raritone/session-backend/internal/cart"
	"github.com/raritone/session-backend/internal/reconcile"
	"github.com/raritone/session-backend/pkg/config"
	"github.com/raritone/session-backend/pkg/db"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/redis"
)

// Params groups everything the router needs to wire its handlers.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	Engine  *reconcile.Engine
	Manager *cart.Manager
	DB      db.Pinger
	Redis   redis.Pinger
}

// New builds the HTTP router: health and metrics endpoints, a public ping,
// and the session-scoped cart, wishlist and auth-transition routes.
func New(params Params) *chi.Mux {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logg))
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.CORS())

	r.Get("/health/live", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/public", func(r chi.Router) {
			r.Get("/ping", controllers.PublicPing())
		})

		r.Route("/v1", func(r chi.Router) {
			r.Use(middleware.Session(logg))

			r.Get("/ping", controllers.SessionPing())

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(params.Manager, logg))
				r.Post("/items", controllers.CartAddItem(params.Manager, logg))
				r.Patch("/items/{productID}", controllers.CartSetQuantity(params.Manager, logg))
				r.Delete("/items/{productID}", controllers.CartRemoveItem(params.Manager, logg))
				r.Post("/clear", controllers.CartClear(params.Manager, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.WishlistFetch(params.Manager, logg))
				r.Post("/", controllers.WishlistAdd(params.Manager, logg))
				r.Delete("/{productID}", controllers.WishlistRemove(params.Manager, logg))
			})

			r.Route("/session", func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg))

				r.Post("/login-completed", controllers.SessionLoginCompleted(params.Engine, params.Manager, logg))
				r.Post("/logged-out", controllers.SessionLoggedOut(params.Engine, params.Manager, logg))
				r.Post("/switch", controllers.SessionSwitch(params.Engine, params.Manager, logg))
			})
		})
	})

	return r
}
