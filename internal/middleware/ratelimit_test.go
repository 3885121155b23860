package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitCapsPerDeviceToken(t *testing.T) {
	h := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Device-Token", token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if do("dev-a") != http.StatusOK || do("dev-a") != http.StatusOK {
		t.Fatal("requests under the cap must pass")
	}
	if do("dev-a") != http.StatusTooManyRequests {
		t.Fatal("request over the cap must be rejected")
	}
	if do("dev-b") != http.StatusOK {
		t.Fatal("other clients must not share the bucket")
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	h := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if do("10.0.0.1:1234", "") != http.StatusOK {
		t.Fatal("first request must pass")
	}
	if do("10.0.0.1:9999", "") != http.StatusTooManyRequests {
		t.Fatal("same IP with a different port shares the bucket")
	}
	if do("10.0.0.2:1234", "") != http.StatusOK {
		t.Fatal("distinct IP must have its own bucket")
	}
	if do("10.0.0.3:1234", "203.0.113.7, 10.0.0.3") != http.StatusOK {
		t.Fatal("forwarded client must key on the forwarded IP")
	}
	if do("10.0.0.4:1234", "203.0.113.7") != http.StatusTooManyRequests {
		t.Fatal("forwarded IP must share its bucket across proxies")
	}
}

func TestRateLimitWindowResets(t *testing.T) {
	h := RateLimit(1, time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Device-Token", "dev-reset")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatal("first request must pass")
	}

	time.Sleep(5 * time.Millisecond)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatal("a new window must admit requests again")
	}
}
