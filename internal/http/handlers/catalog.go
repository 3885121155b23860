package handlers

import (
	"net/http"
)

// CatalogList returns the purchasable plans and credit packs.
func (a *App) CatalogList(w http.ResponseWriter, r *http.Request) {
	offers, packs, err := a.Catalog.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("catalog: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load catalog")
		return
	}
	plans := make([]map[string]any, 0, len(offers))
	for _, o := range offers {
		plans = append(plans, map[string]any{
			"code":          o.Code,
			"plan":          string(o.Plan),
			"price_cents":   o.PriceCents,
			"currency":      o.Currency,
			"duration_days": o.DurationDays,
			"monthly_quota": o.MonthlyQuota,
		})
	}
	credits := make([]map[string]any, 0, len(packs))
	for _, p := range packs {
		credits = append(credits, map[string]any{
			"code":        p.Code,
			"credits":     p.Credits,
			"price_cents": p.PriceCents,
			"currency":    p.Currency,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"plans": plans, "credit_packs": credits})
}
