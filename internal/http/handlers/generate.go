package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"tunesmith/internal/domain"
	"tunesmith/internal/entitlement"
	"tunesmith/internal/infra"
	"tunesmith/internal/middleware"
)

type generateRequest struct {
	Title        string   `json:"title"`
	Style        string   `json:"style"`
	Moods        []string `json:"moods"`
	Prompt       string   `json:"prompt"`
	Lyrics       string   `json:"lyrics"`
	Instrumental bool     `json:"instrumental"`
	VocalGender  string   `json:"vocal_gender"`
	DurationSec  int      `json:"duration_sec"`
	Model        string   `json:"model"`
}

type generateResponse struct {
	OrderID        string `json:"order_id"`
	OrderStatus    string `json:"order_status"`
	PaymentStatus  string `json:"payment_status"`
	PaymentRef     string `json:"payment_ref,omitempty"`
	RemainingQuota int    `json:"remaining_quota"`
}

// Generate admits one generation request through the quota gate and creates
// its order. With the payment bypass on, the order is settled and queued in
// the same request; otherwise it waits for the payment webhook.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing principal context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	params := domain.GenerationParams{
		Title:        req.Title,
		Style:        req.Style,
		Moods:        req.Moods,
		Prompt:       req.Prompt,
		Lyrics:       req.Lyrics,
		Instrumental: req.Instrumental,
		VocalGender:  req.VocalGender,
		DurationSec:  req.DurationSec,
		Model:        req.Model,
	}
	if err := params.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid generation parameters")
		return
	}

	decision, err := a.Ledger.CheckAndReserve(r.Context(), *p)
	if err != nil {
		a.Logger.Error().Err(err).Str("principal_id", p.ID).Msg("generate: reservation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
		return
	}
	if !decision.Allowed {
		locale := middleware.LocaleFromContext(r.Context())
		a.json(w, http.StatusForbidden, map[string]any{
			"error": map[string]any{
				"code":    string(decision.Reason),
				"message": denyMessage(locale, decision.Reason),
				"used":    decision.Used,
				"limit":   decision.Limit,
			},
		})
		return
	}

	order := &domain.Order{
		ID:          a.IDNode.Generate().String(),
		PrincipalID: p.ID,
		Kind:        domain.OrderKindGeneration,
		Params:      params,
		Currency:    "USD",
		PaymentRef:  "pay_" + uuid.NewString(),
		QuotaPool:   string(decision.Pool),
	}
	if err := a.Orders.Create(r.Context(), order); err != nil {
		a.Logger.Error().Err(err).Str("principal_id", p.ID).Msg("generate: order create failed")
		if refundErr := a.Ledger.Refund(r.Context(), p.ID, decision.Pool); refundErr != nil {
			a.Logger.Error().Err(refundErr).Str("principal_id", p.ID).Msg("generate: refund after order failure failed")
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to create order")
		return
	}

	resp := generateResponse{
		OrderID:        order.ID,
		OrderStatus:    string(domain.OrderPending),
		PaymentStatus:  string(domain.PaymentPending),
		PaymentRef:     order.PaymentRef,
		RemainingQuota: decision.Remaining,
	}

	if a.Cfg.PaymentBypass {
		err := a.DB.InTx(r.Context(), func(tx infra.SQLExecutor) error {
			orders := a.Orders.WithExecutor(tx)
			if _, err := orders.MarkPaid(r.Context(), order.ID); err != nil {
				return err
			}
			_, err := a.Queue.WithExecutor(tx).Enqueue(r.Context(), order.ID, params, 0)
			return err
		})
		if err != nil {
			a.Logger.Error().Err(err).Str("order_id", order.ID).Msg("generate: bypass settlement failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to queue generation")
			return
		}
		resp.OrderStatus = string(domain.OrderProcessing)
		resp.PaymentStatus = string(domain.PaymentPaid)
		resp.PaymentRef = ""
	}

	a.json(w, http.StatusAccepted, resp)
}

func denyMessage(locale string, reason entitlement.DenyReason) string {
	if locale == "id" {
		switch reason {
		case entitlement.DenyDailyLimitGuest:
			return "kuota harian tamu habis, daftar untuk melanjutkan"
		case entitlement.DenyMonthlyLimitFree:
			return "kuota bulanan gratis habis, tingkatkan paket untuk melanjutkan"
		case entitlement.DenyNeedTopup:
			return "kuota bulanan habis, beli kredit tambahan untuk melanjutkan"
		}
		return "kuota habis"
	}
	switch reason {
	case entitlement.DenyDailyLimitGuest:
		return "daily guest limit reached, sign up to continue"
	case entitlement.DenyMonthlyLimitFree:
		return "free monthly limit reached, upgrade to continue"
	case entitlement.DenyNeedTopup:
		return "monthly quota exhausted, buy extra credits to continue"
	}
	return "quota exhausted"
}
