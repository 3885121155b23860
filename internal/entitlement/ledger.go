// Package entitlement decides whether a principal may start a generation and
// accounts for the allowance it consumes. Every admission is a single atomic
// SQL statement, so concurrent requests from one principal can never be
// granted more allowances than remain.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/sqlinline"
)

// DenyReason codes are surfaced verbatim to the requester.
type DenyReason string

const (
	DenyDailyLimitGuest  DenyReason = "DAILY_LIMIT_GUEST"
	DenyMonthlyLimitFree DenyReason = "MONTHLY_LIMIT_FREE"
	DenyNeedTopup        DenyReason = "NEED_TOPUP"
)

// Pool names which counter a reservation debited, so a terminal failure can
// refund the right one.
type Pool string

const (
	PoolNone    Pool = ""
	PoolDaily   Pool = "daily"
	PoolMonthly Pool = "monthly"
	PoolCredit  Pool = "credit"
)

// Decision is the outcome of a reservation attempt.
type Decision struct {
	Allowed   bool
	Reason    DenyReason
	Pool      Pool
	Used      int
	Limit     int
	Remaining int
	Credits   int
}

// Limits carries the configured quota ceilings per tier.
type Limits struct {
	GuestDaily  int
	FreeMonthly int
	ProMonthly  int
}

// Ledger gates generation requests against quota counters.
type Ledger struct {
	db     infra.SQLExecutor
	limits Limits
	logger zerolog.Logger
}

func NewLedger(db infra.SQLExecutor, limits Limits, logger zerolog.Logger) *Ledger {
	return &Ledger{db: db, limits: limits, logger: logger}
}

// WithExecutor returns a copy bound to a different executor so grants can run
// inside the payment reconciler's transaction.
func (l *Ledger) WithExecutor(db infra.SQLExecutor) *Ledger {
	return &Ledger{db: db, limits: l.limits, logger: l.logger}
}

// GrantCredits adds purchased extra credits to the principal's balance.
func (l *Ledger) GrantCredits(ctx context.Context, principalID string, credits int) error {
	if credits <= 0 {
		return fmt.Errorf("entitlement: invalid credit grant %d", credits)
	}
	if _, err := l.db.Exec(ctx, sqlinline.QAddCredits, principalID, credits); err != nil {
		return fmt.Errorf("entitlement: grant credits: %w", err)
	}
	return nil
}

// ExtendPlan activates or additively extends a paid plan.
func (l *Ledger) ExtendPlan(ctx context.Context, principalID string, plan domain.Plan, durationDays int) error {
	if durationDays <= 0 {
		return fmt.Errorf("entitlement: invalid plan duration %d", durationDays)
	}
	if _, err := l.db.Exec(ctx, sqlinline.QExtendPlan, principalID, string(plan), durationDays); err != nil {
		return fmt.Errorf("entitlement: extend plan: %w", err)
	}
	return nil
}

// CheckAndReserve admits or denies one generation request and, when admitted,
// consumes the corresponding allowance in the same statement.
func (l *Ledger) CheckAndReserve(ctx context.Context, p domain.Principal) (Decision, error) {
	plan := p.EffectivePlan(time.Now())
	switch plan {
	case domain.PlanVIP, domain.PlanAdmin:
		return Decision{Allowed: true, Pool: PoolNone, Limit: -1, Remaining: -1}, nil
	case domain.PlanGuest:
		return l.reserveDaily(ctx, p.ID)
	case domain.PlanFree:
		return l.reserveMonthly(ctx, p.ID)
	case domain.PlanPro:
		return l.reserveProOrCredit(ctx, p.ID)
	default:
		return Decision{}, fmt.Errorf("entitlement: %w: %q", domain.ErrUnknownPlan, plan)
	}
}

func (l *Ledger) reserveDaily(ctx context.Context, principalID string) (Decision, error) {
	limit := l.limits.GuestDaily
	row := l.db.QueryRow(ctx, sqlinline.QReserveDaily, principalID, limit)
	var used int
	if err := row.Scan(&used); err != nil {
		if infra.IsNoRows(err) {
			return Decision{Reason: DenyDailyLimitGuest, Used: limit, Limit: limit}, nil
		}
		return Decision{}, fmt.Errorf("entitlement: reserve daily: %w", err)
	}
	return Decision{Allowed: true, Pool: PoolDaily, Used: used, Limit: limit, Remaining: limit - used}, nil
}

func (l *Ledger) reserveMonthly(ctx context.Context, principalID string) (Decision, error) {
	limit := l.limits.FreeMonthly
	row := l.db.QueryRow(ctx, sqlinline.QReserveMonthly, principalID, limit)
	var used int
	if err := row.Scan(&used); err != nil {
		if infra.IsNoRows(err) {
			return Decision{Reason: DenyMonthlyLimitFree, Used: limit, Limit: limit}, nil
		}
		return Decision{}, fmt.Errorf("entitlement: reserve monthly: %w", err)
	}
	return Decision{Allowed: true, Pool: PoolMonthly, Used: used, Limit: limit, Remaining: limit - used}, nil
}

func (l *Ledger) reserveProOrCredit(ctx context.Context, principalID string) (Decision, error) {
	limit := l.limits.ProMonthly
	row := l.db.QueryRow(ctx, sqlinline.QReserveProOrCredit, principalID, limit)
	var pool string
	var used, credits int
	if err := row.Scan(&pool, &used, &credits); err != nil {
		if infra.IsNoRows(err) {
			return Decision{Reason: DenyNeedTopup, Used: limit, Limit: limit}, nil
		}
		return Decision{}, fmt.Errorf("entitlement: reserve pro: %w", err)
	}
	d := Decision{Allowed: true, Used: used, Limit: limit, Remaining: limit - used, Credits: credits}
	if pool == "credit" {
		d.Pool = PoolCredit
		d.Remaining = 0
	} else {
		d.Pool = PoolMonthly
	}
	return d, nil
}

// Refund returns one allowance to the pool a reservation debited. Called when
// a generation reaches terminal failure so the principal is not charged for
// nothing.
func (l *Ledger) Refund(ctx context.Context, principalID string, pool Pool) error {
	var query string
	switch pool {
	case PoolDaily:
		query = sqlinline.QRefundDaily
	case PoolMonthly:
		query = sqlinline.QRefundMonthly
	case PoolCredit:
		query = sqlinline.QRefundCredit
	case PoolNone:
		return nil
	default:
		return fmt.Errorf("entitlement: unknown pool %q", pool)
	}
	if _, err := l.db.Exec(ctx, query, principalID); err != nil {
		return fmt.Errorf("entitlement: refund %s: %w", pool, err)
	}
	l.logger.Debug().Str("principal_id", principalID).Str("pool", string(pool)).Msg("entitlement: refunded allowance")
	return nil
}

// Snapshot is the read-path projection of a principal's quota state.
type Snapshot struct {
	Plan          domain.Plan `json:"plan"`
	PlanExpiresAt *time.Time  `json:"plan_expires_at,omitempty"`
	DailyCount    int         `json:"daily_count"`
	MonthlyCount  int         `json:"monthly_count"`
	Limit         int         `json:"limit"`
	ExtraCredits  int         `json:"extra_credits"`
	Remaining     int         `json:"remaining"`
	CanDownload   bool        `json:"can_download"`
}

// QuotaSnapshot projects current counters without side effects.
func (l *Ledger) QuotaSnapshot(ctx context.Context, principalID string) (Snapshot, error) {
	row := l.db.QueryRow(ctx, sqlinline.QQuotaSnapshot, principalID)
	var s Snapshot
	var plan string
	if err := row.Scan(&plan, &s.PlanExpiresAt, &s.DailyCount, &s.MonthlyCount, &s.ExtraCredits); err != nil {
		if infra.IsNoRows(err) {
			return Snapshot{}, domain.ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("entitlement: quota snapshot: %w", err)
	}
	s.Plan = domain.Plan(plan)
	if s.PlanExpiresAt != nil && time.Now().After(*s.PlanExpiresAt) && s.Plan == domain.PlanPro {
		s.Plan = domain.PlanFree
	}
	switch s.Plan {
	case domain.PlanVIP, domain.PlanAdmin:
		s.Limit = -1
		s.Remaining = -1
	case domain.PlanGuest:
		s.Limit = l.limits.GuestDaily
		s.Remaining = max(s.Limit-s.DailyCount, 0)
	case domain.PlanFree:
		s.Limit = l.limits.FreeMonthly
		s.Remaining = max(s.Limit-s.MonthlyCount, 0)
	case domain.PlanPro:
		s.Limit = l.limits.ProMonthly
		s.Remaining = max(s.Limit-s.MonthlyCount, 0) + s.ExtraCredits
	}
	s.CanDownload = s.Plan != domain.PlanGuest
	return s, nil
}
