package domain

import "time"

// PlanOffer is a read-only catalog row describing a purchasable plan. Orders
// reference it at purchase time so the webhook reconciler knows what to grant.
type PlanOffer struct {
	Code         string
	Plan         Plan
	PriceCents   int64
	Currency     string
	DurationDays int
	MonthlyQuota int
}

// CreditPack is a read-only catalog row for purchasable extra credits.
type CreditPack struct {
	Code       string
	Credits    int
	PriceCents int64
	Currency   string
}

// PlanExtension computes the new expiry when a plan purchase lands. Grants
// are additive: an active unexpired plan is extended, not overwritten.
func PlanExtension(current *time.Time, now time.Time, durationDays int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(0, 0, durationDays)
}
