package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tunesmith/internal/domain"
	"tunesmith/internal/payment"
)

const maxWebhookBody = 1 << 20

// PaymentWebhook receives signed settlement events from the payment
// provider. Unauthenticated or malformed deliveries are rejected, but a
// verified event is always acknowledged with 200, even when processing
// fails: the event row keeps the error, and redelivery of the same event id
// reprocesses it idempotently. Returning an error here would only provoke a
// provider retry storm against a failure that 200 already records.
func (a *App) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if a.Cfg.PaymentWebhookSecret == "" {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "payment webhook not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	sig := r.Header.Get("X-Webhook-Signature")
	if err := payment.VerifySignature(a.Cfg.PaymentWebhookSecret, sig, body); err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
		return
	}
	var event payment.Event
	if err := json.Unmarshal(body, &event); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Reconciler.Handle(r.Context(), "payment", event, body); err != nil {
		a.Logger.Error().Err(err).Str("event_id", event.ID).Msg("webhook: payment event failed")
		a.json(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generationCallback struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	AudioURL     string `json:"audio_url"`
	ErrorMessage string `json:"error_message"`
}

// GenerationCallback accepts provider push updates for a running task. The
// worker's poll loop remains the source of truth for completion; the
// callback only advances the mirrored task state so clients polling the
// order see progress sooner. Terminal-state guards on the task row make the
// two writers converge.
func (a *App) GenerationCallback(w http.ResponseWriter, r *http.Request) {
	secret := a.Cfg.GenerationCallbackSecret
	if secret == "" {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "generation callback not configured")
		return
	}
	token := r.Header.Get("X-Callback-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid callback token")
		return
	}
	var cb generationCallback
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&cb); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if cb.TaskID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "task_id required")
		return
	}
	task, err := a.Tasks.ByExternalID(r.Context(), cb.TaskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Unknown task ids are acknowledged; the provider may deliver
			// callbacks for tasks submitted by another environment.
			a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		a.Logger.Error().Err(err).Str("external_task_id", cb.TaskID).Msg("webhook: task lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load task")
		return
	}
	status := normalizeCallbackStatus(cb.Status)
	if err := a.Tasks.UpdateProgress(r.Context(), task.ID, status, cb.Progress, cb.AudioURL, cb.ErrorMessage); err != nil {
		a.Logger.Error().Err(err).Str("task_id", task.ID).Msg("webhook: task update failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update task")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func normalizeCallbackStatus(raw string) domain.TaskStatus {
	switch raw {
	case "complete", "completed", "SUCCESS":
		return domain.TaskCompleted
	case "error", "failed", "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED", "CALLBACK_EXCEPTION", "SENSITIVE_WORD_ERROR":
		return domain.TaskFailed
	case "text", "first", "processing", "TEXT_SUCCESS", "FIRST_SUCCESS":
		return domain.TaskProcessing
	default:
		return domain.TaskPending
	}
}
