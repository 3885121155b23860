package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tunesmith/internal/payment"
	"tunesmith/internal/sqlinline"
)

func paymentWebhookRequest(t *testing.T, secret string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", payment.Sign(secret, body))
	return req
}

func scriptGenerationOrder(db *appTestDB) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db.rows[sqlinline.QSelectOrderByPaymentRef] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "ord-1"
			*dest[1].(*string) = "p-1"
			*dest[2].(*string) = "generation"
			*dest[3].(*[]byte) = []byte(`{"prompt":"x"}`)
			*dest[4].(*int64) = 199
			*dest[5].(*string) = "USD"
			*dest[6].(*string) = "pay_ref_1"
			*dest[7].(*string) = "pending"
			*dest[8].(*string) = "pending"
			*dest[9].(*string) = ""
			*dest[10].(*string) = ""
			*dest[11].(*string) = "monthly"
			*dest[12].(*string) = ""
			*dest[13].(*string) = ""
			*dest[14].(*time.Time) = created
			*dest[15].(*time.Time) = created
			return nil
		}
	}
	db.rows[sqlinline.QMarkOrderPaid] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "processing"
			return nil
		}
	}
	db.rows[sqlinline.QEnqueueJob] = func(args []any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = args[0].(string)
			return nil
		}
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	app := newTestApp(t, newAppTestDB(), testConfig())
	body := []byte(`{"id":"evt-1","type":"payment.succeeded","reference_id":"pay_ref_1"}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	rr := httptest.NewRecorder()
	app.PaymentWebhook(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestPaymentWebhookUnavailableWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.PaymentWebhookSecret = ""
	app := newTestApp(t, newAppTestDB(), cfg)

	rr := httptest.NewRecorder()
	app.PaymentWebhook(rr, httptest.NewRequest(http.MethodPost, "/v1/webhooks/payment", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestPaymentWebhookSettlesGenerationOrder(t *testing.T) {
	db := newAppTestDB()
	scriptGenerationOrder(db)
	cfg := testConfig()
	app := newTestApp(t, db, cfg)
	body := []byte(`{"id":"evt-1","type":"payment.succeeded","reference_id":"pay_ref_1","amount_cents":199,"currency":"USD"}`)

	rr := httptest.NewRecorder()
	app.PaymentWebhook(rr, paymentWebhookRequest(t, cfg.PaymentWebhookSecret, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	for _, q := range []string{sqlinline.QMarkOrderPaid, sqlinline.QEnqueueJob, sqlinline.QMarkWebhookProcessed} {
		if !db.saw(q) {
			t.Fatalf("expected statement to run: %s", q)
		}
	}
}

func TestPaymentWebhookAcknowledgesProcessingFailure(t *testing.T) {
	db := newAppTestDB()
	scriptGenerationOrder(db)
	db.rows[sqlinline.QEnqueueJob] = func([]any) func(dest ...any) error {
		return func(...any) error { return errors.New("jobs table unavailable") }
	}
	cfg := testConfig()
	app := newTestApp(t, db, cfg)
	body := []byte(`{"id":"evt-1","type":"payment.succeeded","reference_id":"pay_ref_1"}`)

	rr := httptest.NewRecorder()
	app.PaymentWebhook(rr, paymentWebhookRequest(t, cfg.PaymentWebhookSecret, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("processing failure must still be acknowledged, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "accepted" {
		t.Fatalf("status = %q, want accepted", resp["status"])
	}
	if !db.saw(sqlinline.QMarkWebhookError) {
		t.Fatal("the failure must be recorded on the event row")
	}
	if db.saw(sqlinline.QMarkWebhookProcessed) {
		t.Fatal("a failed event must stay unprocessed for redelivery")
	}
}

func TestPaymentWebhookRejectsInvalidPayload(t *testing.T) {
	cfg := testConfig()
	app := newTestApp(t, newAppTestDB(), cfg)
	body := []byte(`{not json`)

	rr := httptest.NewRecorder()
	app.PaymentWebhook(rr, paymentWebhookRequest(t, cfg.PaymentWebhookSecret, body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func generationCallbackRequest(t *testing.T, token string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/generation", bytes.NewReader(raw))
	if token != "" {
		req.Header.Set("X-Callback-Token", token)
	}
	return req
}

func TestGenerationCallbackRejectsWrongToken(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationCallbackSecret = "cb-secret"
	app := newTestApp(t, newAppTestDB(), cfg)

	rr := httptest.NewRecorder()
	app.GenerationCallback(rr, generationCallbackRequest(t, "wrong", map[string]any{"task_id": "t-1"}))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestGenerationCallbackIgnoresUnknownTask(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationCallbackSecret = "cb-secret"
	db := newAppTestDB()
	app := newTestApp(t, db, cfg)

	rr := httptest.NewRecorder()
	app.GenerationCallback(rr, generationCallbackRequest(t, "cb-secret", map[string]any{
		"task_id": "ext-unknown", "status": "complete",
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ignored" {
		t.Fatalf("unknown task must be acknowledged as ignored, got %q", resp["status"])
	}
	if db.saw(sqlinline.QUpdateTaskProgress) {
		t.Fatal("unknown task must not be updated")
	}
}

func TestGenerationCallbackAdvancesTask(t *testing.T) {
	cfg := testConfig()
	cfg.GenerationCallbackSecret = "cb-secret"
	db := newAppTestDB()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db.rows[sqlinline.QSelectTaskByExternalID] = func([]any) func(dest ...any) error {
		return func(dest ...any) error {
			*dest[0].(*string) = "task-1"
			*dest[1].(*string) = "ord-1"
			*dest[2].(*string) = "ext-1"
			*dest[3].(*string) = "processing"
			*dest[4].(*int) = 40
			*dest[5].(*string) = ""
			*dest[6].(*string) = ""
			*dest[7].(*time.Time) = created
			*dest[8].(*time.Time) = created
			return nil
		}
	}
	app := newTestApp(t, db, cfg)

	rr := httptest.NewRecorder()
	app.GenerationCallback(rr, generationCallbackRequest(t, "cb-secret", map[string]any{
		"task_id": "ext-1", "status": "first", "progress": 70,
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if !db.saw(sqlinline.QUpdateTaskProgress) {
		t.Fatal("task progress must be written")
	}
}

func TestNormalizeCallbackStatus(t *testing.T) {
	cases := map[string]string{
		"complete":              "completed",
		"SUCCESS":               "completed",
		"error":                 "failed",
		"SENSITIVE_WORD_ERROR":  "failed",
		"GENERATE_AUDIO_FAILED": "failed",
		"text":                  "processing",
		"FIRST_SUCCESS":         "processing",
		"":                      "pending",
		"SOMETHING_NEW":         "pending",
	}
	for raw, want := range cases {
		if got := string(normalizeCallbackStatus(raw)); got != want {
			t.Fatalf("normalizeCallbackStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
