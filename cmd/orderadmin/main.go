package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/queue"
	"tunesmith/internal/store"
)

func main() {
	var (
		orderFlag  string
		actionFlag string
	)

	flag.StringVar(&orderFlag, "order", "", "order ID to operate on")
	flag.StringVar(&actionFlag, "action", "", "action to perform (retry, cancel, close, status)")
	flag.Parse()

	orderID := strings.TrimSpace(orderFlag)
	action := strings.TrimSpace(strings.ToLower(actionFlag))

	if orderID == "" {
		exitWithError(errors.New("-order is required"))
	}
	switch action {
	case "retry", "cancel", "close", "status":
	default:
		exitWithError(fmt.Errorf("unsupported action %q", action))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "orderadmin").Logger()
	runner := infra.NewSQLRunner(pool, logger)
	orders := store.NewOrders(runner, logger)
	q := queue.New(runner, queue.Options{}, logger)

	switch action {
	case "retry":
		params, err := orders.Retry(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				exitWithError(fmt.Errorf("order %s is not retryable (must be failed and paid)", orderID))
			}
			exitWithError(fmt.Errorf("failed to retry order: %w", err))
		}
		jobID, err := q.Enqueue(ctx, orderID, params, 0)
		if err != nil {
			exitWithError(fmt.Errorf("failed to enqueue job: %w", err))
		}
		if jobID == "" {
			fmt.Printf("Order %s reset to processing, job already active\n", orderID)
		} else {
			fmt.Printf("Order %s reset to processing, job %s enqueued\n", orderID, jobID)
		}
	case "cancel":
		if err := orders.Cancel(ctx, orderID); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				exitWithError(fmt.Errorf("order %s cannot be cancelled from its current state", orderID))
			}
			exitWithError(fmt.Errorf("failed to cancel order: %w", err))
		}
		fmt.Printf("Order %s cancelled\n", orderID)
	case "close":
		if err := orders.Close(ctx, orderID); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				exitWithError(fmt.Errorf("order %s cannot be closed (must be completed or cancelled)", orderID))
			}
			exitWithError(fmt.Errorf("failed to close order: %w", err))
		}
		fmt.Printf("Order %s closed\n", orderID)
	case "status":
		order, err := orders.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				exitWithError(fmt.Errorf("order %s not found", orderID))
			}
			exitWithError(fmt.Errorf("failed to load order: %w", err))
		}
		fmt.Printf("Order %s: kind=%s payment=%s status=%s\n",
			order.ID, order.Kind, order.PaymentStatus, order.OrderStatus)
		if order.ErrorMessage != "" {
			fmt.Printf("  error: %s\n", order.ErrorMessage)
		}
		job, err := q.ByOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				fmt.Println("  no job enqueued")
				return
			}
			exitWithError(fmt.Errorf("failed to load job: %w", err))
		}
		fmt.Printf("  job %s: status=%s attempts=%d/%d next_run=%s\n",
			job.ID, job.Status, job.Attempts, job.MaxAttempts, job.NextRunAt.Format(time.RFC3339))
		if job.LastError != "" {
			fmt.Printf("  last error: %s\n", job.LastError)
		}
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
