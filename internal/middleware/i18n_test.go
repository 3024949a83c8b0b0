package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		country  string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "EN")
			},
			country: "UA",
			want:    "en",
		},
		{
			name: "accept-language english",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: "en",
		},
		{
			name: "accept-language ukrainian preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "uk-UA,en;q=0.8")
			},
			want: "uk",
		},
		{
			name: "unsupported language defers to country",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ja-JP")
			},
			country: "UA",
			want:    "uk",
		},
		{
			name:    "foreign country falls back to en",
			country: "PL",
			want:    "en",
		},
		{
			name:     "configured fallback",
			fallback: "en",
			want:     "en",
		},
		{
			name: "default to uk",
			want: "uk",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			got := detectLocale(req, tc.fallback, tc.country)
			if got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "ua")
				r.Header.Set("CF-IPCountry", "pl")
			},
			want: "UA",
		},
		{
			name: "cloudflare header",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "de")
			},
			want: "DE",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "ua", nil
			},
			want: "UA",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := ResolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NStoresLocaleAndCountry(t *testing.T) {
	var locale, country string
	h := I18N("uk", func(string) (string, error) { return "pl", nil })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale = LocaleFromContext(r.Context())
		country = CountryFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.4:80"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if locale != "en" || country != "PL" {
		t.Fatalf("got locale %q country %q", locale, country)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != "uk" {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, "uk")
	}
	ctx = context.WithValue(ctx, LocaleKey, "en")
	if got := LocaleFromContext(ctx); got != "en" {
		t.Fatalf("LocaleFromContext() with value = %q, want %q", got, "en")
	}
}
