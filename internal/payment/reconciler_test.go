package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/entitlement"
	"tunesmith/internal/infra"
	"tunesmith/internal/queue"
	"tunesmith/internal/sqlinline"
	"tunesmith/internal/store"
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

type stubTxDB struct {
	rows  map[string]func(args []any) func(dest ...any) error
	execs map[string]func(args []any) (pgconn.CommandTag, error)
	calls []string
}

func newStubTxDB() *stubTxDB {
	return &stubTxDB{
		rows:  map[string]func(args []any) func(dest ...any) error{},
		execs: map[string]func(args []any) (pgconn.CommandTag, error){},
	}
}

func (s *stubTxDB) saw(query string) bool {
	for _, c := range s.calls {
		if c == query {
			return true
		}
	}
	return false
}

func (s *stubTxDB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, query)
	if h, ok := s.execs[query]; ok {
		return h(args)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubTxDB) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, query)
	if h, ok := s.rows[query]; ok {
		return stubRow{scan: h(args)}
	}
	return stubRow{}
}

func (s *stubTxDB) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unexpected query: %s", query)
}

func (s *stubTxDB) InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	return fn(s)
}

type orderFixture struct {
	id             string
	kind           string
	planCode       string
	creditPackCode string
}

func scriptOrder(db *stubTxDB, o orderFixture) {
	db.rows[sqlinline.QSelectOrderByPaymentRef] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			params, _ := json.Marshal(domain.GenerationParams{Prompt: "x"})
			*dest[0].(*string) = o.id
			*dest[1].(*string) = "p-1"
			*dest[2].(*string) = o.kind
			*dest[3].(*[]byte) = params
			*dest[4].(*int64) = 990
			*dest[5].(*string) = "USD"
			*dest[6].(*string) = "pay_ref"
			*dest[7].(*string) = "pending"
			*dest[8].(*string) = "pending"
			*dest[9].(*string) = o.planCode
			*dest[10].(*string) = o.creditPackCode
			*dest[11].(*string) = ""
			*dest[12].(*string) = ""
			*dest[13].(*string) = ""
			*dest[14].(*time.Time) = time.Now()
			*dest[15].(*time.Time) = time.Now()
			return nil
		}
	}
}

func scriptPaidFlip(db *stubTxDB) {
	db.rows[sqlinline.QMarkOrderPaid] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "processing"
			return nil
		}
	}
}

func newTestReconciler(db *stubTxDB) *Reconciler {
	logger := zerolog.New(io.Discard)
	return NewReconciler(
		db,
		store.NewOrders(db, logger),
		store.NewCatalog(db),
		entitlement.NewLedger(db, entitlement.Limits{GuestDaily: 1, FreeMonthly: 3, ProMonthly: 30}, logger),
		queue.New(db, queue.Options{}, logger),
		logger,
	)
}

func event(typ string) Event {
	return Event{ID: "evt-1", Type: typ, ReferenceID: "pay_ref", AmountCents: 990, Currency: "USD"}
}

func TestHandleGenerationOrderEnqueuesJob(t *testing.T) {
	db := newStubTxDB()
	scriptOrder(db, orderFixture{id: "ord-1", kind: "generation"})
	scriptPaidFlip(db)
	db.rows[sqlinline.QEnqueueJob] = func(args []any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = args[0].(string)
			return nil
		}
	}

	r := newTestReconciler(db)
	if err := r.Handle(context.Background(), "stripe", event(EventSucceeded), []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !db.saw(sqlinline.QEnqueueJob) {
		t.Fatal("expected a job to be enqueued")
	}
	if !db.saw(sqlinline.QMarkWebhookProcessed) {
		t.Fatal("expected the event to be marked processed")
	}
}

func TestHandleCreditsOrderGrantsCredits(t *testing.T) {
	db := newStubTxDB()
	scriptOrder(db, orderFixture{id: "ord-1", kind: "credits", creditPackCode: "credits-10"})
	scriptPaidFlip(db)
	db.rows[sqlinline.QSelectCreditPack] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "credits-10"
			*dest[1].(*int) = 10
			*dest[2].(*int64) = 990
			*dest[3].(*string) = "USD"
			return nil
		}
	}

	r := newTestReconciler(db)
	if err := r.Handle(context.Background(), "stripe", event(EventSucceeded), []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !db.saw(sqlinline.QAddCredits) {
		t.Fatal("expected credits to be granted")
	}
	if !db.saw(sqlinline.QCompleteOrder) {
		t.Fatal("expected the credits order to complete")
	}
	if db.saw(sqlinline.QEnqueueJob) {
		t.Fatal("credits orders never enqueue generation jobs")
	}
}

func TestHandlePlanOrderExtendsPlan(t *testing.T) {
	db := newStubTxDB()
	scriptOrder(db, orderFixture{id: "ord-1", kind: "plan", planCode: "pro-monthly"})
	scriptPaidFlip(db)
	db.rows[sqlinline.QSelectPlanOffer] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "pro-monthly"
			*dest[1].(*string) = "pro"
			*dest[2].(*int64) = 990
			*dest[3].(*string) = "USD"
			*dest[4].(*int) = 30
			*dest[5].(*int) = 30
			return nil
		}
	}

	r := newTestReconciler(db)
	if err := r.Handle(context.Background(), "stripe", event(EventSucceeded), []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !db.saw(sqlinline.QExtendPlan) {
		t.Fatal("expected the plan to be extended")
	}
	if !db.saw(sqlinline.QCompleteOrder) {
		t.Fatal("expected the plan order to complete")
	}
}

func TestHandleDuplicateEventIsNoop(t *testing.T) {
	db := newStubTxDB()
	db.execs[sqlinline.QInsertWebhookEvent] = func([]any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	db.rows[sqlinline.QSelectWebhookEvent] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "row-1"
			*dest[1].(*bool) = true
			return nil
		}
	}

	r := newTestReconciler(db)
	if err := r.Handle(context.Background(), "stripe", event(EventSucceeded), []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if db.saw(sqlinline.QSelectOrderByPaymentRef) {
		t.Fatal("processed duplicates must not reload the order")
	}
	if db.saw(sqlinline.QMarkOrderPaid) {
		t.Fatal("processed duplicates must not touch the order")
	}
}

func TestHandleRedeliveryAfterCrashReprocesses(t *testing.T) {
	db := newStubTxDB()
	db.execs[sqlinline.QInsertWebhookEvent] = func([]any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	// Stored but never marked processed.
	db.rows[sqlinline.QSelectWebhookEvent] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "row-1"
			*dest[1].(*bool) = false
			return nil
		}
	}
	scriptOrder(db, orderFixture{id: "ord-1", kind: "generation"})
	// The paid flip already happened before the crash: no row matches.
	db.rows[sqlinline.QMarkOrderPaid] = func([]any) func(dest ...any) error { return nil }

	r := newTestReconciler(db)
	if err := r.Handle(context.Background(), "stripe", event(EventSucceeded), []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if db.saw(sqlinline.QEnqueueJob) {
		t.Fatal("already-settled payment must not grant twice")
	}
	if !db.saw(sqlinline.QMarkWebhookProcessed) {
		t.Fatal("redelivery must finish by marking the event processed")
	}
}

func TestHandleUnknownReferenceAcksEvent(t *testing.T) {
	db := newStubTxDB()
	// No order row scripted: lookup by reference finds nothing.

	r := newTestReconciler(db)
	if err := r.Handle(context.Background(), "stripe", event(EventSucceeded), []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !db.saw(sqlinline.QMarkWebhookProcessed) {
		t.Fatal("unknown references are acknowledged so the provider stops retrying")
	}
	if db.saw(sqlinline.QMarkOrderPaid) {
		t.Fatal("no order to mutate")
	}
}

func TestHandleFailedPaymentNeverEnqueues(t *testing.T) {
	db := newStubTxDB()
	scriptOrder(db, orderFixture{id: "ord-1", kind: "generation"})

	r := newTestReconciler(db)
	if err := r.Handle(context.Background(), "stripe", event(EventFailed), []byte(`{}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !db.saw(sqlinline.QMarkPaymentFailed) {
		t.Fatal("expected payment failure to be recorded")
	}
	if db.saw(sqlinline.QEnqueueJob) || db.saw(sqlinline.QMarkOrderPaid) {
		t.Fatal("failed payments must not settle or enqueue")
	}
}

func TestHandleRejectsIncompleteEvents(t *testing.T) {
	r := newTestReconciler(newStubTxDB())
	if err := r.Handle(context.Background(), "stripe", Event{Type: EventSucceeded}, nil); err == nil {
		t.Fatal("events without id and reference must be rejected")
	}
}
