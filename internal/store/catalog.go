package store

import (
	"context"
	"fmt"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/sqlinline"
)

// Catalog reads the purchasable plan and credit-pack rows. Catalog rows are
// reference data; nothing at runtime mutates them.
type Catalog struct {
	db infra.SQLExecutor
}

func NewCatalog(db infra.SQLExecutor) *Catalog {
	return &Catalog{db: db}
}

// WithExecutor returns a copy bound to a different executor.
func (s *Catalog) WithExecutor(db infra.SQLExecutor) *Catalog {
	return &Catalog{db: db}
}

// PlanOffer fetches one plan offer by code.
func (s *Catalog) PlanOffer(ctx context.Context, code string) (*domain.PlanOffer, error) {
	row := s.db.QueryRow(ctx, sqlinline.QSelectPlanOffer, code)
	var o domain.PlanOffer
	var plan string
	if err := row.Scan(&o.Code, &plan, &o.PriceCents, &o.Currency, &o.DurationDays, &o.MonthlyQuota); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan plan offer: %w", err)
	}
	o.Plan = domain.Plan(plan)
	return &o, nil
}

// CreditPack fetches one credit pack by code.
func (s *Catalog) CreditPack(ctx context.Context, code string) (*domain.CreditPack, error) {
	row := s.db.QueryRow(ctx, sqlinline.QSelectCreditPack, code)
	var p domain.CreditPack
	if err := row.Scan(&p.Code, &p.Credits, &p.PriceCents, &p.Currency); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan credit pack: %w", err)
	}
	return &p, nil
}

// List returns the whole catalog.
func (s *Catalog) List(ctx context.Context) ([]domain.PlanOffer, []domain.CreditPack, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListPlanOffers)
	if err != nil {
		return nil, nil, fmt.Errorf("store: list plan offers: %w", err)
	}
	var offers []domain.PlanOffer
	for rows.Next() {
		var o domain.PlanOffer
		var plan string
		if err := rows.Scan(&o.Code, &plan, &o.PriceCents, &o.Currency, &o.DurationDays, &o.MonthlyQuota); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("store: scan plan offer: %w", err)
		}
		o.Plan = domain.Plan(plan)
		offers = append(offers, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = s.db.Query(ctx, sqlinline.QListCreditPacks)
	if err != nil {
		return nil, nil, fmt.Errorf("store: list credit packs: %w", err)
	}
	defer rows.Close()
	var packs []domain.CreditPack
	for rows.Next() {
		var p domain.CreditPack
		if err := rows.Scan(&p.Code, &p.Credits, &p.PriceCents, &p.Currency); err != nil {
			return nil, nil, fmt.Errorf("store: scan credit pack: %w", err)
		}
		packs = append(packs, p)
	}
	return offers, packs, rows.Err()
}
