package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tunesmith/internal/domain"
	"tunesmith/internal/middleware"
)

// OrderStatus is the pollable projection of one order and its latest
// generation attempt.
func (a *App) OrderStatus(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing principal context")
		return
	}
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "order id required")
		return
	}
	order, err := a.Orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		a.Logger.Error().Err(err).Str("order_id", orderID).Msg("orders: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load order")
		return
	}
	if order.PrincipalID != p.ID && p.EffectivePlan(time.Now()) != domain.PlanAdmin {
		a.error(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	body := map[string]any{
		"id":             order.ID,
		"kind":           string(order.Kind),
		"order_status":   string(order.OrderStatus),
		"payment_status": string(order.PaymentStatus),
		"created_at":     order.CreatedAt,
		"updated_at":     order.UpdatedAt,
	}
	if order.ArtifactURL != "" {
		body["artifact_url"] = order.ArtifactURL
	}
	if order.ErrorMessage != "" {
		body["error_message"] = order.ErrorMessage
	}

	task, err := a.Tasks.LatestByOrder(r.Context(), order.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.Logger.Error().Err(err).Str("order_id", orderID).Msg("orders: load task failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load order")
		return
	}
	if task != nil {
		body["task"] = map[string]any{
			"status":   string(task.Status),
			"progress": task.Progress,
		}
	}
	a.json(w, http.StatusOK, body)
}
