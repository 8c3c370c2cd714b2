package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/config"
	"github.com/Ap1297/Random-Chat-Application/internal/core"
	wshandler "github.com/Ap1297/Random-Chat-Application/internal/ws"
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Relay  *core.Relay
	Config config.Config
	// Gatherer backs /metrics. Nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
	Clock    clock.Clock

	chat *wshandler.ChatHandler
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if s.Config.OriginAllowed(r.Header.Get("Origin")) {
				return true
			}
			slog.Warn("chat ws origin rejected", "origin", r.Header.Get("Origin"))
			return false
		},
	}

	s.chat = &wshandler.ChatHandler{
		Relay:    s.Relay,
		Upgrader: upgrader,
		ConnectLimiter: core.NewRateLimiter(
			s.Config.ConnectRatePerMin,
			time.Minute,
			s.Config.RateLimitKeys,
			s.clock(),
		),
		TrustForwardedFor: s.Config.TrustProxyHeaders,
		SendBuffer:        s.Config.SendBuffer,
		WriteTimeout:      s.Config.WriteTimeout,
		PongWait:          s.Config.PongWait,
		PingPeriod:        s.Config.PingPeriod(),
		MaxMessageBytes:   s.Config.MaxMessageBytes,
		MessagesPerSecond: s.Config.MessagesPerSecond,
		MessageBurst:      s.Config.MessageBurst,
	}
	mux.Handle("/chat", s.chat)

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if s.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// CloseConnections drops every open /chat socket.
func (s *Server) CloseConnections() {
	if s.chat != nil {
		s.chat.CloseAll()
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats := s.Relay.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "online",
		"message":            "Chat server is running",
		"timestamp":          s.clock().Now().UnixMilli(),
		"connections":        stats.Connections,
		"waiting":            stats.Waiting,
		"pairs":              stats.Pairs,
		"pairs_created":      stats.PairsCreated,
		"messages_forwarded": stats.MessagesForwarded,
	})
}

func (s *Server) clock() clock.Clock {
	if s.Clock == nil {
		return clock.New()
	}
	return s.Clock
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
