// Package payment applies payment-provider webhook events to orders and
// principals. Delivery is at least once, possibly duplicated and out of
// order; every effect here is guarded so redelivery converges to the same
// final state.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/entitlement"
	"tunesmith/internal/infra"
	"tunesmith/internal/queue"
	"tunesmith/internal/sqlinline"
	"tunesmith/internal/store"
)

// Event outcomes delivered by the provider.
const (
	EventSucceeded = "payment.succeeded"
	EventFailed    = "payment.failed"
	EventCanceled  = "payment.canceled"
)

// Event is the decoded payment-provider envelope.
type Event struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	ReferenceID string `json:"reference_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Reconciler applies payment events. The order mutation and its principal
// side effect (plan extension, credit grant, job enqueue) run in one
// transaction, so a crash mid-reconciliation can never leave a payment
// marked paid without its grant.
type Reconciler struct {
	db      infra.TxExecutor
	orders  *store.Orders
	catalog *store.Catalog
	ledger  *entitlement.Ledger
	queue   *queue.Queue
	logger  zerolog.Logger
}

func NewReconciler(db infra.TxExecutor, orders *store.Orders, catalog *store.Catalog, ledger *entitlement.Ledger, q *queue.Queue, logger zerolog.Logger) *Reconciler {
	return &Reconciler{db: db, orders: orders, catalog: catalog, ledger: ledger, queue: q, logger: logger}
}

// Handle processes one event. Unknown references and duplicates are
// acknowledged without error so the provider does not retry forever.
func (r *Reconciler) Handle(ctx context.Context, provider string, event Event, rawPayload []byte) error {
	if event.ID == "" || event.ReferenceID == "" {
		return fmt.Errorf("payment: event missing id or reference")
	}

	eventRowID, duplicate, err := r.recordEvent(ctx, provider, event, rawPayload)
	if err != nil {
		return err
	}
	if duplicate {
		r.logger.Info().Str("event_id", event.ID).Msg("payment: duplicate event, already processed")
		return nil
	}

	return r.apply(ctx, eventRowID, event)
}

func (r *Reconciler) apply(ctx context.Context, eventRowID string, event Event) error {
	order, err := r.orders.GetByPaymentRef(ctx, event.ReferenceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn().Str("reference_id", event.ReferenceID).Msg("payment: no order for reference, acknowledging")
			return r.markProcessed(ctx, eventRowID)
		}
		return fmt.Errorf("payment: load order: %w", err)
	}

	err = r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		orders := r.orders.WithExecutor(tx)
		switch event.Type {
		case EventSucceeded:
			if err := r.applySuccess(ctx, tx, orders, order); err != nil {
				return err
			}
		case EventFailed:
			if err := orders.MarkPaymentOutcome(ctx, order.ID, domain.PaymentFailed); err != nil {
				return err
			}
		case EventCanceled:
			if err := orders.MarkPaymentOutcome(ctx, order.ID, domain.PaymentCanceled); err != nil {
				return err
			}
		default:
			r.logger.Warn().Str("type", event.Type).Msg("payment: unrecognized event type, acknowledging")
		}
		if _, err := tx.Exec(ctx, sqlinline.QMarkWebhookProcessed, eventRowID); err != nil {
			return fmt.Errorf("payment: mark event processed: %w", err)
		}
		return nil
	})
	if err != nil {
		if markErr := r.markError(ctx, eventRowID, err); markErr != nil {
			r.logger.Error().Err(markErr).Msg("payment: record processing error failed")
		}
		return err
	}
	return nil
}

// applySuccess marks the order paid and applies what was purchased. The paid
// flip matches at most once per order, which makes the grants exactly-once
// even under duplicate delivery.
func (r *Reconciler) applySuccess(ctx context.Context, tx infra.SQLExecutor, orders *store.Orders, order *domain.Order) error {
	flipped, err := orders.MarkPaid(ctx, order.ID)
	if err != nil {
		return err
	}
	if !flipped {
		r.logger.Info().Str("order_id", order.ID).Msg("payment: payment already settled, no-op")
		return nil
	}

	ledger := r.ledger.WithExecutor(tx)
	catalog := r.catalog.WithExecutor(tx)

	switch order.Kind {
	case domain.OrderKindGeneration:
		if _, err := r.queue.WithExecutor(tx).Enqueue(ctx, order.ID, order.Params, 0); err != nil {
			return err
		}
	case domain.OrderKindPlan:
		offer, err := catalog.PlanOffer(ctx, order.PlanCode)
		if err != nil {
			return fmt.Errorf("payment: resolve plan offer %q: %w", order.PlanCode, err)
		}
		if err := ledger.ExtendPlan(ctx, order.PrincipalID, offer.Plan, offer.DurationDays); err != nil {
			return err
		}
		if err := orders.Complete(ctx, order.ID, ""); err != nil {
			return err
		}
	case domain.OrderKindCredits:
		pack, err := catalog.CreditPack(ctx, order.CreditPackCode)
		if err != nil {
			return fmt.Errorf("payment: resolve credit pack %q: %w", order.CreditPackCode, err)
		}
		if err := ledger.GrantCredits(ctx, order.PrincipalID, pack.Credits); err != nil {
			return err
		}
		if err := orders.Complete(ctx, order.ID, ""); err != nil {
			return err
		}
	default:
		return fmt.Errorf("payment: unknown order kind %q", order.Kind)
	}
	return nil
}

// recordEvent stores the envelope for deduplication. Returns the row id and
// whether the event was already fully processed.
func (r *Reconciler) recordEvent(ctx context.Context, provider string, event Event, rawPayload []byte) (string, bool, error) {
	rowID := uuid.NewString()
	tag, err := r.db.Exec(ctx, sqlinline.QInsertWebhookEvent, rowID, provider, event.ID, event.Type, rawPayload)
	if err != nil {
		return "", false, fmt.Errorf("payment: record event: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return rowID, false, nil
	}

	// Seen before: either fully processed (no-op) or a redelivery after a
	// crash mid-reconciliation (reprocess under the stored id).
	row := r.db.QueryRow(ctx, sqlinline.QSelectWebhookEvent, provider, event.ID)
	var storedID string
	var processed bool
	if err := row.Scan(&storedID, &processed); err != nil {
		return "", false, fmt.Errorf("payment: load event: %w", err)
	}
	return storedID, processed, nil
}

func (r *Reconciler) markProcessed(ctx context.Context, eventRowID string) error {
	if _, err := r.db.Exec(ctx, sqlinline.QMarkWebhookProcessed, eventRowID); err != nil {
		return fmt.Errorf("payment: mark event processed: %w", err)
	}
	return nil
}

func (r *Reconciler) markError(ctx context.Context, eventRowID string, cause error) error {
	_, err := r.db.Exec(ctx, sqlinline.QMarkWebhookError, eventRowID, cause.Error())
	return err
}
