package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/raritone/session-backend/api/routes"
	"github.com/raritone/session-backend/internal/accountcart"
	"github.com/raritone/session-backend/internal/cart"
	"github.com/raritone/session-backend/internal/catalog"
	"github.com/raritone/session-backend/internal/guestcart"
	"github.com/raritone/session-backend/internal/reconcile"
	"github.com/raritone/session-backend/pkg/config"
	"github.com/raritone/session-backend/pkg/db"
	"github.com/raritone/session-backend/pkg/eventbus"
	"github.com/raritone/session-backend/pkg/logger"
	"github.com/raritone/session-backend/pkg/metrics"
	"github.com/raritone/session-backend/pkg/migrate"
	"github.com/raritone/session-backend/pkg/pubsub"
	"github.com/raritone/session-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}

	guestStore, err := guestcart.NewStore(guestcart.StoreParams{
		KV:     redisClient,
		TTL:    cfg.GuestCart.TTL,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create guest cart store", err)
		os.Exit(1)
	}

	accountStore, err := accountcart.NewStore(accountcart.StoreParams{
		DB:     dbClient.DB(),
		Retry:  cfg.Merge,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create account cart store", err)
		os.Exit(1)
	}

	bus := eventbus.New()
	mergeMetrics := metrics.NewMergeMetrics(prometheus.DefaultRegisterer)

	engineParams := reconcile.EngineParams{
		Local:   guestStore,
		Remote:  accountStore,
		Stock:   catalog.NewRepository(dbClient.DB()),
		Logger:  logg,
		Metrics: mergeMetrics,
	}
	if pubsubClient != nil {
		engineParams.Publisher = pubsubClient
	}

	engine, err := reconcile.NewEngine(engineParams)
	if err != nil {
		logg.Error(ctx, "failed to create reconciliation engine", err)
		os.Exit(1)
	}
	engine.OnMergeOutcome(func(outcome reconcile.Outcome) {
		logg.Info(ctx, "cart merge completed: "+string(outcome))
	})

	manager, err := cart.NewManager(cart.ManagerParams{
		Local:  guestStore,
		Remote: accountStore,
		Bus:    bus,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart manager", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.New(routes.Params{
			Config:  cfg,
			Logger:  logg,
			Engine:  engine,
			Manager: manager,
			DB:      dbClient,
			Redis:   redisClient,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}

	var closeErr error
	if pubsubClient != nil {
		closeErr = multierr.Append(closeErr, pubsubClient.Close())
	}
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(context.Background(), "error closing resources", closeErr)
		os.Exit(1)
	}
}
