package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/sqlinline"
)

// Principals resolves and creates quota-bearing actors. Quota counters on
// these rows are mutated only through the entitlement ledger and the payment
// reconciler.
type Principals struct {
	db     infra.SQLExecutor
	logger zerolog.Logger
}

func NewPrincipals(db infra.SQLExecutor, logger zerolog.Logger) *Principals {
	return &Principals{db: db, logger: logger}
}

// EnsureGuest returns the principal id for a device token, creating the
// guest row on first contact.
func (s *Principals) EnsureGuest(ctx context.Context, deviceToken string) (string, error) {
	row := s.db.QueryRow(ctx, sqlinline.QUpsertGuestPrincipal, deviceToken)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("store: ensure guest: %w", err)
	}
	return id, nil
}

// Get fetches a principal by id.
func (s *Principals) Get(ctx context.Context, id string) (*domain.Principal, error) {
	row := s.db.QueryRow(ctx, sqlinline.QSelectPrincipal, id)
	var p domain.Principal
	var plan string
	if err := row.Scan(
		&p.ID, &p.DeviceToken, &p.Email, &plan, &p.PlanExpiresAt,
		&p.DailyCount, &p.DailyWindowStart,
		&p.MonthlyCount, &p.MonthlyWindowStart,
		&p.ExtraCredits, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan principal: %w", err)
	}
	p.Plan = domain.Plan(plan)
	return &p, nil
}
