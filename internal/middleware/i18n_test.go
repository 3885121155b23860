package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		country string
		want    string
	}{
		{"explicit header wins", map[string]string{"X-Locale": "id-ID", "Accept-Language": "en-US"}, "", "id"},
		{"accept language", map[string]string{"Accept-Language": "id,en;q=0.8"}, "", "id"},
		{"accept language english", map[string]string{"Accept-Language": "en-GB"}, "", "en"},
		{"country hint", nil, "ID", "id"},
		{"foreign country hint", nil, "US", "en"},
		{"fallback", nil, "", "en"},
		{"unknown locale normalizes to english", map[string]string{"X-Locale": "fr-FR"}, "", "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := detectLocale(r, "en", tc.country); got != tc.want {
				t.Fatalf("detectLocale = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountryHeaderHints(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("CF-IPCountry", "sg")
	if got := ResolveCountry(r, nil); got != "SG" {
		t.Fatalf("ResolveCountry = %q, want SG", got)
	}
}

func TestResolveCountryFromAcceptLanguageRegion(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	if got := ResolveCountry(r, nil); got != "AU" {
		t.Fatalf("ResolveCountry = %q, want AU", got)
	}
}

func TestResolveCountryUsesLookupLast(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:4567"
	lookup := func(ip string) (string, error) {
		if ip != "203.0.113.7" {
			t.Fatalf("lookup got %q", ip)
		}
		return "jp", nil
	}
	if got := ResolveCountry(r, lookup); got != "JP" {
		t.Fatalf("ResolveCountry = %q, want JP", got)
	}

	failing := func(string) (string, error) { return "", errors.New("db closed") }
	if got := ResolveCountry(r, failing); got != "" {
		t.Fatalf("failed lookup must yield empty country, got %q", got)
	}
}

func TestI18NMiddlewareAttachesContext(t *testing.T) {
	var locale, country string
	h := I18N("en", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale = LocaleFromContext(r.Context())
		country = CountryFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "id-ID")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if locale != "id" || country != "ID" {
		t.Fatalf("locale = %q country = %q", locale, country)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.9:1234"
	if got := ClientIP(r); got != "192.0.2.9" {
		t.Fatalf("ClientIP = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "198.51.100.2, 192.0.2.9")
	if got := ClientIP(r); got != "198.51.100.2" {
		t.Fatalf("ClientIP forwarded = %q", got)
	}
}
