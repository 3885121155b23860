package handlers

import (
	"net/http"

	"tunesmith/internal/middleware"
)

// Quota projects the caller's current allowance without consuming anything.
func (a *App) Quota(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing principal context")
		return
	}
	snap, err := a.Ledger.QuotaSnapshot(r.Context(), p.ID)
	if err != nil {
		a.Logger.Error().Err(err).Str("principal_id", p.ID).Msg("quota: snapshot failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load quota")
		return
	}
	a.json(w, http.StatusOK, snap)
}
