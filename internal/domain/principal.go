package domain

import "time"

// Plan enumerates entitlement tiers.
type Plan string

const (
	PlanGuest Plan = "guest"
	PlanFree  Plan = "free"
	PlanPro   Plan = "pro"
	PlanVIP   Plan = "vip"
	PlanAdmin Plan = "admin"
)

// Unlimited reports whether the plan bypasses quota gating entirely.
func (p Plan) Unlimited() bool {
	return p == PlanVIP || p == PlanAdmin
}

// Principal is the actor consuming generation quota. Guests are identified
// by an opaque device token; all other tiers carry an account id. Principals
// are created on first contact and never deleted.
type Principal struct {
	ID                 string
	DeviceToken        string
	Email              string
	Plan               Plan
	PlanExpiresAt      *time.Time
	DailyCount         int
	DailyWindowStart   time.Time
	MonthlyCount       int
	MonthlyWindowStart time.Time
	ExtraCredits       int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EffectivePlan downgrades an expired paid plan to free for gating purposes.
func (p Principal) EffectivePlan(now time.Time) Plan {
	if p.Plan == PlanPro && p.PlanExpiresAt != nil && now.After(*p.PlanExpiresAt) {
		return PlanFree
	}
	return p.Plan
}
