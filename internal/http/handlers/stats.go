package handlers

import (
	"net/http"

	"tunesmith/internal/sqlinline"
)

func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QStatsSummary)
	var totalPrincipals, ordersCompleted, ordersFailed, tracks24h, liveJobs int64
	if err := row.Scan(&totalPrincipals, &ordersCompleted, &ordersFailed, &tracks24h, &liveJobs); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"total_principals": totalPrincipals,
		"orders_completed": ordersCompleted,
		"orders_failed":    ordersFailed,
		"tracks_last_24h":  tracks24h,
		"live_jobs":        liveJobs,
	})
}
