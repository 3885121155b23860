package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tunesmith/internal/entitlement"
	"tunesmith/internal/http/handlers"
	"tunesmith/internal/http/httpapi"
	"tunesmith/internal/infra"
	"tunesmith/internal/infra/geoip"
	"tunesmith/internal/middleware"
	"tunesmith/internal/payment"
	"tunesmith/internal/queue"
	"tunesmith/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	idNode, err := infra.NewIDNode()
	if err != nil {
		logger.Fatal().Err(err).Msg("api: id node init failed")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip unavailable, using header locale detection")
	} else if resolver != nil {
		lookup = resolver.CountryCode
	}

	orders := store.NewOrders(runner, logger)
	tasks := store.NewTasks(runner, logger)
	tracks := store.NewTracks(runner, logger)
	principals := store.NewPrincipals(runner, logger)
	catalog := store.NewCatalog(runner)
	ledger := entitlement.NewLedger(runner, entitlement.Limits{
		GuestDaily:  cfg.GuestDailyLimit,
		FreeMonthly: cfg.FreeMonthlyLimit,
		ProMonthly:  cfg.ProMonthlyLimit,
	}, logger)
	q := queue.New(runner, queue.Options{
		MaxAttempts:       cfg.QueueMaxAttempts,
		BackoffBase:       cfg.QueueBackoffBase,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
	}, logger)
	reconciler := payment.NewReconciler(runner, orders, catalog, ledger, q, logger)

	app := &handlers.App{
		SQL:        runner,
		DB:         runner,
		Cfg:        cfg,
		Logger:     logger,
		Principals: principals,
		Orders:     orders,
		Tasks:      tasks,
		Tracks:     tracks,
		Catalog:    catalog,
		Ledger:     ledger,
		Queue:      q,
		Reconciler: reconciler,
		IDNode:     idNode,
	}

	router := httpapi.NewRouter(app, lookup, cfg.StoragePath)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
