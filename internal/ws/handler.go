package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/core"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// ChatHandler serves the /chat websocket endpoint.
type ChatHandler struct {
	Relay    *core.Relay
	Upgrader websocket.Upgrader

	// ConnectLimiter throttles upgrades per remote IP. Nil disables it.
	ConnectLimiter *core.RateLimiter
	// TrustForwardedFor keys the limiter on X-Forwarded-For.
	TrustForwardedFor bool

	SendBuffer        int
	WriteTimeout      time.Duration
	PongWait          time.Duration
	PingPeriod        time.Duration
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int

	mu    sync.Mutex
	conns map[string]*ClientConn
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := remoteIP(r, h.TrustForwardedFor)
	if h.ConnectLimiter != nil && !h.ConnectLimiter.Allow(ip) {
		slog.Warn("chat ws rate limited", "remote", ip)
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("chat ws upgrade failed", "remote", ip, "err", err)
		return
	}

	id := uuid.NewString()
	client := NewClientConn(conn, h.SendBuffer, h.WriteTimeout, h.PingPeriod)
	if err := h.Relay.Connect(id, client); err != nil {
		slog.Error("chat session rejected", "session_id", id, "err", err)
		client.Close()
		return
	}
	h.track(id, client)
	go client.writeLoop()
	defer func() {
		client.Close()
		h.Relay.Disconnect(id)
		h.untrack(id)
	}()
	slog.Info("chat ws connected", "session_id", id, "remote", ip)

	// An oversize frame ends the connection; gorilla cannot skip a frame
	// once the read limit trips.
	if h.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.MaxMessageBytes)
	}
	pongWait := h.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := h.messageLimiter()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("chat ws read failed", "session_id", id, "err", err)
			}
			slog.Info("chat ws disconnected", "session_id", id, "remote", ip)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage {
			continue
		}
		if limiter != nil && !limiter.Allow() {
			h.Relay.NotifyThrottled(id)
			continue
		}
		h.Relay.HandleMessage(id, data)
	}
}

func (h *ChatHandler) messageLimiter() *rate.Limiter {
	if h.MessagesPerSecond <= 0 {
		return nil
	}
	burst := h.MessageBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.MessagesPerSecond), burst)
}

// CloseAll drops every live connection. Hijacked connections are not covered
// by http.Server.Shutdown.
func (h *ChatHandler) CloseAll() {
	h.mu.Lock()
	conns := lo.Values(h.conns)
	h.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (h *ChatHandler) track(id string, c *ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns == nil {
		h.conns = make(map[string]*ClientConn)
	}
	h.conns[id] = c
}

func (h *ChatHandler) untrack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}
