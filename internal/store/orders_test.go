package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/sqlinline"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubDB struct {
	rows    map[string]func(args []any) func(dest ...any) error
	tags    map[string]pgconn.CommandTag
	lastSQL string
	args    map[string][]any
}

func newStubDB() *stubDB {
	return &stubDB{
		rows: map[string]func(args []any) func(dest ...any) error{},
		tags: map[string]pgconn.CommandTag{},
		args: map[string][]any{},
	}
}

func (s *stubDB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.lastSQL = query
	s.args[query] = args
	if tag, ok := s.tags[query]; ok {
		return tag, nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubDB) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.lastSQL = query
	s.args[query] = args
	if h, ok := s.rows[query]; ok {
		return stubRow{scan: h(args)}
	}
	return stubRow{}
}

func (s *stubDB) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", query)
}

func testOrders(db *stubDB) *Orders {
	return NewOrders(db, zerolog.New(io.Discard))
}

func TestMarkPaidReportsDuplicateSettlement(t *testing.T) {
	db := newStubDB()
	db.rows[sqlinline.QMarkOrderPaid] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "processing"
			return nil
		}
	}
	orders := testOrders(db)

	flipped, err := orders.MarkPaid(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !flipped {
		t.Fatal("first settlement must flip the order")
	}

	// No row matches once payment_status is no longer pending.
	delete(db.rows, sqlinline.QMarkOrderPaid)
	flipped, err = orders.MarkPaid(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("mark paid duplicate: %v", err)
	}
	if flipped {
		t.Fatal("duplicate settlement must be reported as a no-op")
	}
}

func TestCompleteOutsideProcessingIsInvalidTransition(t *testing.T) {
	db := newStubDB()
	db.tags[sqlinline.QCompleteOrder] = pgconn.NewCommandTag("UPDATE 0")
	orders := testOrders(db)

	err := orders.Complete(context.Background(), "ord-1", "http://x/a.mp3")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRetryRequiresFailedPaidOrder(t *testing.T) {
	db := newStubDB()
	orders := testOrders(db)

	// No row: order is not failed+paid.
	if _, err := orders.Retry(context.Background(), "ord-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	params := domain.GenerationParams{Prompt: "come back"}
	raw, _ := json.Marshal(params)
	db.rows[sqlinline.QRetryOrder] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*[]byte) = raw
			return nil
		}
	}
	got, err := orders.Retry(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Prompt != params.Prompt {
		t.Fatalf("params mismatch: %+v", got)
	}
}

func TestCancelAndCloseGuards(t *testing.T) {
	db := newStubDB()
	db.tags[sqlinline.QCancelOrder] = pgconn.NewCommandTag("UPDATE 0")
	db.tags[sqlinline.QCloseOrder] = pgconn.NewCommandTag("UPDATE 0")
	orders := testOrders(db)

	if err := orders.Cancel(context.Background(), "ord-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel: expected ErrInvalidTransition, got %v", err)
	}
	if err := orders.Close(context.Background(), "ord-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("close: expected ErrInvalidTransition, got %v", err)
	}

	db.tags[sqlinline.QCancelOrder] = pgconn.NewCommandTag("UPDATE 1")
	if err := orders.Cancel(context.Background(), "ord-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestMarkPaymentOutcomeValidation(t *testing.T) {
	orders := testOrders(newStubDB())
	if err := orders.MarkPaymentOutcome(context.Background(), "ord-1", domain.PaymentPaid); err == nil {
		t.Fatal("paid is not a failure outcome")
	}
	if err := orders.MarkPaymentOutcome(context.Background(), "ord-1", domain.PaymentFailed); err != nil {
		t.Fatalf("failed outcome: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	orders := testOrders(newStubDB())
	if _, err := orders.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetDecodesOrder(t *testing.T) {
	params := domain.GenerationParams{Prompt: "golden hour", Style: "indie"}
	raw, _ := json.Marshal(params)
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	db := newStubDB()
	db.rows[sqlinline.QSelectOrder] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "ord-1"
			*dest[1].(*string) = "p-1"
			*dest[2].(*string) = "generation"
			*dest[3].(*[]byte) = raw
			*dest[4].(*int64) = 0
			*dest[5].(*string) = "USD"
			*dest[6].(*string) = "pay_ref"
			*dest[7].(*string) = "paid"
			*dest[8].(*string) = "processing"
			*dest[9].(*string) = ""
			*dest[10].(*string) = ""
			*dest[11].(*string) = "daily"
			*dest[12].(*string) = ""
			*dest[13].(*string) = ""
			*dest[14].(*time.Time) = created
			*dest[15].(*time.Time) = created
			return nil
		}
	}
	orders := testOrders(db)

	o, err := orders.Get(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.Kind != domain.OrderKindGeneration || o.OrderStatus != domain.OrderProcessing || o.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("unexpected order: %+v", o)
	}
	if o.Params.Prompt != params.Prompt || o.QuotaPool != "daily" {
		t.Fatalf("unexpected order payload: %+v", o)
	}
}

func TestCreateSendsNullsForEmptyOptionalFields(t *testing.T) {
	db := newStubDB()
	orders := testOrders(db)

	o := &domain.Order{
		ID: "ord-1", PrincipalID: "p-1", Kind: domain.OrderKindGeneration,
		Params: domain.GenerationParams{Prompt: "x"}, Currency: "USD",
		PaymentRef: "pay_1", QuotaPool: "daily",
	}
	if err := orders.Create(context.Background(), o); err != nil {
		t.Fatalf("create: %v", err)
	}

	args := db.args[sqlinline.QInsertOrder]
	if args[7] != (*string)(nil) || args[8] != (*string)(nil) {
		t.Fatalf("empty plan and credit pack codes must be nil, got %v and %v", args[7], args[8])
	}
	if ref, ok := args[6].(*string); !ok || *ref != "pay_1" {
		t.Fatalf("payment ref must be passed, got %v", args[6])
	}
}
