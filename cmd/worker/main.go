package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"tunesmith/internal/entitlement"
	"tunesmith/internal/infra"
	"tunesmith/internal/providers/suno"
	"tunesmith/internal/queue"
	"tunesmith/internal/storage"
	"tunesmith/internal/store"
	"tunesmith/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	backend, err := suno.NewClient(suno.Options{
		APIKey:      cfg.SunoAPIKey,
		BaseURL:     cfg.SunoBaseURL,
		Model:       cfg.SunoModel,
		CallbackURL: cfg.SunoCallbackURL,
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure generation backend")
	}

	idNode, err := infra.NewIDNode()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: id node init failed")
	}

	orders := store.NewOrders(runner, logger)
	tasks := store.NewTasks(runner, logger)
	tracks := store.NewTracks(runner, logger)
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

	w := worker.New(worker.Config{
		Concurrency:     cfg.WorkerConcurrency,
		PollInterval:    cfg.WorkerPollInterval,
		MaxPollAttempts: cfg.WorkerMaxPollAttempts,
		StorageBaseURL:  cfg.StorageBaseURL,
	}, q, orders, tasks, tracks, ledger, backend, fileStore, idNode, logger)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
