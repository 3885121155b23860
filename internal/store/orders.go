// Package store persists orders, generation tasks and published tracks, and
// enforces the order state machine at the statement level: every transition
// is a guarded UPDATE whose WHERE clause names the states it may leave, so
// two actors racing to finish the same order cannot move it backward.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/sqlinline"
)

// Orders is the durable record of purchase commitments.
type Orders struct {
	db     infra.SQLExecutor
	logger zerolog.Logger
}

func NewOrders(db infra.SQLExecutor, logger zerolog.Logger) *Orders {
	return &Orders{db: db, logger: logger}
}

// WithExecutor returns a copy bound to a different executor, used by the
// reconciler to run order mutations inside its transaction.
func (s *Orders) WithExecutor(db infra.SQLExecutor) *Orders {
	return &Orders{db: db, logger: s.logger}
}

// Create inserts a new order in pending/pending state.
func (s *Orders) Create(ctx context.Context, o *domain.Order) error {
	params, err := json.Marshal(o.Params)
	if err != nil {
		return fmt.Errorf("store: encode params: %w", err)
	}
	_, err = s.db.Exec(ctx, sqlinline.QInsertOrder,
		o.ID, o.PrincipalID, string(o.Kind), params, o.AmountCents, o.Currency,
		nullable(o.PaymentRef), nullable(o.PlanCode), nullable(o.CreditPackCode), o.QuotaPool)
	if err != nil {
		return fmt.Errorf("store: insert order: %w", err)
	}
	return nil
}

// Get fetches an order by id.
func (s *Orders) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.scanOrder(s.db.QueryRow(ctx, sqlinline.QSelectOrder, id))
}

// GetByPaymentRef fetches an order by its payment-provider reference id.
func (s *Orders) GetByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	return s.scanOrder(s.db.QueryRow(ctx, sqlinline.QSelectOrderByPaymentRef, ref))
}

// MarkPaid flips payment to paid and promotes a pending order to processing.
// Returns false when the payment was already settled (duplicate delivery).
func (s *Orders) MarkPaid(ctx context.Context, id string) (bool, error) {
	row := s.db.QueryRow(ctx, sqlinline.QMarkOrderPaid, id)
	var status string
	if err := row.Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: mark paid: %w", err)
	}
	return true, nil
}

// MarkPaymentOutcome records a failed or canceled payment. A canceled payment
// on a still-pending order cancels the order; a job is never enqueued for it.
func (s *Orders) MarkPaymentOutcome(ctx context.Context, id string, status domain.PaymentStatus) error {
	if status != domain.PaymentFailed && status != domain.PaymentCanceled {
		return fmt.Errorf("store: %w: payment outcome %q", domain.ErrInvalidTransition, status)
	}
	if _, err := s.db.Exec(ctx, sqlinline.QMarkPaymentFailed, id, string(status)); err != nil {
		return fmt.Errorf("store: mark payment %s: %w", status, err)
	}
	return nil
}

// Promote ensures a paid order is in processing before external work starts.
// Returns false for unpaid or terminal orders.
func (s *Orders) Promote(ctx context.Context, id string) (bool, error) {
	row := s.db.QueryRow(ctx, sqlinline.QPromoteOrder, id)
	var status string
	if err := row.Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: promote order: %w", err)
	}
	return true, nil
}

// Complete finishes a processing order with its published artifact URL.
func (s *Orders) Complete(ctx context.Context, id, artifactURL string) error {
	tag, err := s.db.Exec(ctx, sqlinline.QCompleteOrder, id, artifactURL)
	if err != nil {
		return fmt.Errorf("store: complete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: complete order %s: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

// Fail moves a pending or processing order to failed with the causing error.
func (s *Orders) Fail(ctx context.Context, id, message string) error {
	if _, err := s.db.Exec(ctx, sqlinline.QFailOrder, id, message); err != nil {
		return fmt.Errorf("store: fail order: %w", err)
	}
	return nil
}

// Retry is the administrative failed -> processing transition. It returns the
// generation parameters so the caller can re-enqueue a job.
func (s *Orders) Retry(ctx context.Context, id string) (domain.GenerationParams, error) {
	row := s.db.QueryRow(ctx, sqlinline.QRetryOrder, id)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if infra.IsNoRows(err) {
			return domain.GenerationParams{}, domain.ErrInvalidTransition
		}
		return domain.GenerationParams{}, fmt.Errorf("store: retry order: %w", err)
	}
	var params domain.GenerationParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return domain.GenerationParams{}, fmt.Errorf("store: decode params: %w", err)
	}
	return params, nil
}

// Cancel stops a non-terminal order. Already-submitted external work is not
// interrupted; cancellation only prevents a new job from starting.
func (s *Orders) Cancel(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, sqlinline.QCancelOrder, id)
	if err != nil {
		return fmt.Errorf("store: cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// Close archives a completed or cancelled order; closed orders are immutable.
func (s *Orders) Close(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, sqlinline.QCloseOrder, id)
	if err != nil {
		return fmt.Errorf("store: close order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Orders) scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	var kind, paymentStatus, orderStatus string
	var raw []byte
	if err := row.Scan(
		&o.ID, &o.PrincipalID, &kind, &raw, &o.AmountCents, &o.Currency,
		&o.PaymentRef, &paymentStatus, &orderStatus,
		&o.PlanCode, &o.CreditPackCode, &o.QuotaPool,
		&o.ArtifactURL, &o.ErrorMessage, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan order: %w", err)
	}
	o.Kind = domain.OrderKind(kind)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	o.OrderStatus = domain.OrderStatus(orderStatus)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &o.Params); err != nil {
			return nil, fmt.Errorf("store: decode params: %w", err)
		}
	}
	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
