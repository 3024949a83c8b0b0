package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"jarfeed/internal/domain"
)

func startHub(t *testing.T, opts Options) (*Hub, string) {
	t.Helper()
	hub := NewHub(opts, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count = %d, want %d", hub.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	hub, url := startHub(t, Options{})
	a := dial(t, url)
	b := dial(t, url)
	waitForCount(t, hub, 2)

	hub.Broadcast(domain.Donation{ID: "tx-1", Name: "Олена", Amount: decimal.RequireFromString("123.45"), Timestamp: 1700000000000})

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type != "new_donation" {
			t.Fatalf("unexpected type %q", msg.Type)
		}
		if msg.Data["id"] != "tx-1" || msg.Data["amount"] != 123.45 {
			t.Fatalf("unexpected payload %v", msg.Data)
		}
	}
}

func TestDisconnectedSubscriberIsRemoved(t *testing.T) {
	hub, url := startHub(t, Options{})
	conn := dial(t, url)
	waitForCount(t, hub, 1)

	_ = conn.Close()
	waitForCount(t, hub, 0)

	hub.Broadcast(domain.Donation{ID: "after-close"})
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	hub, url := startHub(t, Options{})
	conn := dial(t, url)
	waitForCount(t, hub, 1)

	hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
	if hub.Count() != 0 {
		t.Fatalf("expected no subscribers after Close")
	}
}

func TestOriginAllowList(t *testing.T) {
	_, url := startHub(t, Options{AllowedOrigins: []string{"https://overlay.example"}})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}
	header.Set("Origin", "https://overlay.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = conn.Close()
}

func TestCountryLookupIsOptional(t *testing.T) {
	hub := NewHub(Options{}, zerolog.Nop())
	if got := hub.lookupCountry("203.0.113.7"); got != "" {
		t.Fatalf("expected empty country, got %q", got)
	}
	hub = NewHub(Options{Country: func(string) (string, error) { return "UA", nil }}, zerolog.Nop())
	if got := hub.lookupCountry("203.0.113.7"); got != "UA" {
		t.Fatalf("expected UA, got %q", got)
	}
}
