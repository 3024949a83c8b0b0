package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"jarfeed/internal/domain"
	"jarfeed/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
	maxMessageSize = 512
)

// Message is the only frame the server sends.
type Message struct {
	Type string          `json:"type"`
	Data domain.Donation `json:"data"`
}

type Options struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	// Country resolves a client IP to an ISO code for connection logs. Optional.
	Country func(ip string) (string, error)
}

// Hub keeps the set of connected subscribers and fans donations out to them.
// Delivery is best effort: a subscriber whose buffer is full misses the
// message, a broken one is dropped.
type Hub struct {
	upgrader     websocket.Upgrader
	logger       zerolog.Logger
	country      func(ip string) (string, error)
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func NewHub(opts Options, logger zerolog.Logger) *Hub {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	h := &Hub{
		logger:       logger.With().Str("component", "realtime").Logger(),
		country:      opts.Country,
		pingInterval: opts.PingInterval,
		clients:      make(map[*subscriber]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Broadcast serializes d once and queues it for every subscriber. It never
// blocks.
func (h *Hub) Broadcast(d domain.Donation) {
	payload, err := json.Marshal(Message{Type: "new_donation", Data: d})
	if err != nil {
		h.logger.Error().Err(err).Str("id", d.ID).Msg("realtime: encode message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.clients {
		select {
		case s.send <- payload:
		default:
			metrics.BroadcastsSkipped.Inc()
			h.logger.Warn().Str("ip", s.ip).Msg("realtime: subscriber buffer full, message skipped")
		}
	}
}

// ServeWS upgrades the request and serves the subscriber until it goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("realtime: upgrade failed")
		return
	}
	s := &subscriber{conn: conn, send: make(chan []byte, sendBufferSize), ip: clientIP(r)}
	count, ok := h.register(s)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Info().
		Str("event", "client_connected").
		Int("clients", count).
		Str("ip", s.ip).
		Str("country", h.lookupCountry(s.ip)).
		Msg("realtime")

	go h.writePump(s)
	h.readPump(s)
}

func (h *Hub) register(s *subscriber) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return len(h.clients), false
	}
	h.clients[s] = struct{}{}
	metrics.Subscribers.Set(float64(len(h.clients)))
	return len(h.clients), true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	_, ok := h.clients[s]
	if ok {
		delete(h.clients, s)
		close(s.send)
	}
	count := len(h.clients)
	metrics.Subscribers.Set(float64(count))
	h.mu.Unlock()
	if ok {
		h.logger.Info().Str("event", "client_disconnected").Int("clients", count).Str("ip", s.ip).Msg("realtime")
	}
}

// readPump drains client frames so control messages are processed and a
// closed connection is noticed.
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.unregister(s)
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(h.pongWait()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(h.pongWait()))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) pongWait() time.Duration { return h.pingInterval * 2 }

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.clients {
		delete(h.clients, s)
		close(s.send)
	}
	metrics.Subscribers.Set(0)
}

func (h *Hub) lookupCountry(ip string) string {
	if h.country == nil || ip == "" {
		return ""
	}
	code, err := h.country(ip)
	if err != nil {
		return ""
	}
	return code
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
