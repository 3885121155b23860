package handlers

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"tunesmith/internal/entitlement"
	"tunesmith/internal/infra"
	"tunesmith/internal/payment"
	"tunesmith/internal/queue"
	"tunesmith/internal/store"
)

// appTestDB scripts per-statement responses and records what ran.
type appTestDB struct {
	rows  map[string]func(args []any) func(dest ...any) error
	execs map[string]func(args []any) (pgconn.CommandTag, error)
	calls []string
}

func newAppTestDB() *appTestDB {
	return &appTestDB{
		rows:  map[string]func(args []any) func(dest ...any) error{},
		execs: map[string]func(args []any) (pgconn.CommandTag, error){},
	}
}

func (s *appTestDB) saw(query string) bool {
	for _, c := range s.calls {
		if c == query {
			return true
		}
	}
	return false
}

func (s *appTestDB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, query)
	if h, ok := s.execs[query]; ok {
		return h(args)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *appTestDB) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, query)
	if h, ok := s.rows[query]; ok {
		return NewSimpleRow(h(args))
	}
	return NewSimpleRow(nil)
}

func (s *appTestDB) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", query)
}

func (s *appTestDB) InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	return fn(s)
}

func newTestApp(t *testing.T, db *appTestDB, cfg *infra.Config) *App {
	t.Helper()
	logger := zerolog.New(io.Discard)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	orders := store.NewOrders(db, logger)
	catalog := store.NewCatalog(db)
	ledger := entitlement.NewLedger(db, entitlement.Limits{
		GuestDaily:  cfg.GuestDailyLimit,
		FreeMonthly: cfg.FreeMonthlyLimit,
		ProMonthly:  cfg.ProMonthlyLimit,
	}, logger)
	q := queue.New(db, queue.Options{}, logger)
	return &App{
		SQL:        db,
		DB:         db,
		Cfg:        cfg,
		Logger:     logger,
		Principals: store.NewPrincipals(db, logger),
		Orders:     orders,
		Tasks:      store.NewTasks(db, logger),
		Tracks:     store.NewTracks(db, logger),
		Catalog:    catalog,
		Ledger:     ledger,
		Queue:      q,
		Reconciler: payment.NewReconciler(db, orders, catalog, ledger, q, logger),
		IDNode:     node,
	}
}

func testConfig() *infra.Config {
	return &infra.Config{
		AppEnv:               "test",
		JWTSecret:            "test-secret",
		PaymentWebhookSecret: "whsec_test",
		GuestDailyLimit:      1,
		FreeMonthlyLimit:     3,
		ProMonthlyLimit:      30,
	}
}
