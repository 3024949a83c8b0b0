package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIPForRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded header ignored",
			header:     "203.0.113.1",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "forwarded chain ignored",
			header:     " 203.0.113.1 , 198.51.100.2 ",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "remote host",
			header:     "",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "ipv6 remote",
			header:     "2001:db8::1",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::2",
		},
		{
			name:       "remote without port",
			header:     "invalid",
			remoteAddr: "203.0.113.1",
			want:       "203.0.113.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.header != "" {
				req.Header.Set("X-Forwarded-For", tc.header)
			}
			if got := clientIPForRateLimit(req); got != tc.want {
				t.Fatalf("clientIPForRateLimit() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		want       string
	}{
		{"untrusted peer keeps socket address", []string{"127.0.0.0/8"}, "198.51.100.10:1234", "198.51.100.10"},
		{"trusted peer forwards client", []string{"127.0.0.0/8"}, "127.0.0.1:5000", "203.0.113.1"},
		{"bare address entry", []string{"10.0.0.5"}, "10.0.0.5:80", "203.0.113.1"},
		{"no trusted proxies", nil, "127.0.0.1:5000", "127.0.0.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tc.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			req.Header.Set("X-Forwarded-For", "203.0.113.1")
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLimiterIgnoresRotatingForwardedFor(t *testing.T) {
	h := TrustedRealIP([]string{"127.0.0.0/8"})(NewLimiter(2, time.Minute, "").Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/jars", nil)
		req.RemoteAddr = "198.51.100.10:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("statuses %v, want third request limited", codes)
	}
}

func TestLimiterRejectsOverLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewLimiter(2, time.Minute, "Too many bank requests")
	l.now = func() time.Time { return now }
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/jars", nil)
		req.RemoteAddr = "198.51.100.10:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do(); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rr.Code)
		}
	}
	now = now.Add(15 * time.Second)
	rr := do()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "45" {
		t.Fatalf("Retry-After = %q, want 45", got)
	}
	var body struct {
		Success    bool   `json:"success"`
		Error      string `json:"error"`
		RetryAfter int    `json:"retryAfter"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error != "Too many bank requests" || body.RetryAfter != 45 {
		t.Fatalf("unexpected body %+v", body)
	}

	now = now.Add(time.Minute)
	if rr := do(); rr.Code != http.StatusOK {
		t.Fatalf("expected window reset, got %d", rr.Code)
	}
}

func TestLimiterCountsPerIP(t *testing.T) {
	l := NewLimiter(1, time.Minute, "")
	if ok, _ := l.Allow("203.0.113.1"); !ok {
		t.Fatalf("first request rejected")
	}
	if ok, _ := l.Allow("203.0.113.2"); !ok {
		t.Fatalf("other ip rejected")
	}
	if ok, _ := l.Allow("203.0.113.1"); ok {
		t.Fatalf("second request from same ip allowed")
	}
}
