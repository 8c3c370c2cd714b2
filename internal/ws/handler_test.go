package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/core"
	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, h *ChatHandler) string {
	t.Helper()
	if h.Relay == nil {
		h.Relay = core.NewRelay(core.Config{})
	}
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.CloseAll()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, env core.Envelope) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(env))
}

func read(t *testing.T, conn *websocket.Conn) core.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env core.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestChatHandler_PairsAndRelays(t *testing.T) {
	req := require.New(t)
	url := newChatServer(t, &ChatHandler{})
	alice := dial(t, url)
	bob := dial(t, url)

	// Given both clients joined
	send(t, alice, core.Envelope{Type: core.TypeJoin, Sender: "Alice"})
	req.Equal(core.TypeSystem, read(t, alice).Type)
	send(t, bob, core.Envelope{Type: core.TypeJoin, Sender: "Bob"})
	req.Equal(core.TypeSystem, read(t, bob).Type)

	// Then each learns the other's name
	connected := read(t, alice)
	req.Equal(core.TypePartnerConnected, connected.Type)
	req.Equal("You are now chatting with Bob", connected.Content)
	req.Equal([]string{"Alice", "Bob"}, read(t, alice).Users)
	req.Equal(core.TypePartnerConnected, read(t, bob).Type)
	req.Equal([]string{"Bob", "Alice"}, read(t, bob).Users)

	// When Alice chats, Bob receives it as sent
	send(t, alice, core.Envelope{ID: "m1", Type: core.TypeChat, Sender: "Alice", Content: "hi", Timestamp: "2024-05-01T12:00:00"})
	got := read(t, bob)
	req.Equal("m1", got.ID)
	req.Equal("hi", got.Content)

	// When Bob's socket goes away, Alice is told
	req.NoError(bob.Close())
	gone := read(t, alice)
	req.Equal(core.TypePartnerDisconnected, gone.Type)
	req.Equal("Bob has disconnected. Waiting for a new partner...", gone.Content)
}

func TestChatHandler_MalformedFrameKeepsConnection(t *testing.T) {
	req := require.New(t)
	url := newChatServer(t, &ChatHandler{})
	alice := dial(t, url)

	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	send(t, alice, core.Envelope{Type: core.TypeJoin, Sender: "Alice"})

	ack := read(t, alice)
	req.Equal(core.TypeSystem, ack.Type)
	req.Equal("Waiting for a chat partner...", ack.Content)
}

func TestChatHandler_OversizeFrameClosesConnection(t *testing.T) {
	req := require.New(t)
	url := newChatServer(t, &ChatHandler{MaxMessageBytes: 512})
	alice := dial(t, url)
	bob := dial(t, url)
	send(t, alice, core.Envelope{Type: core.TypeJoin, Sender: "Alice"})
	send(t, bob, core.Envelope{Type: core.TypeJoin, Sender: "Bob"})
	for i := 0; i < 3; i++ {
		read(t, alice)
		read(t, bob)
	}

	// When Alice sends a frame over the read limit
	send(t, alice, core.Envelope{Type: core.TypeChat, Sender: "Alice", Content: strings.Repeat("x", 1024)})

	// Then her session ends and Bob goes back to waiting
	gone := read(t, bob)
	req.Equal(core.TypePartnerDisconnected, gone.Type)
	req.Equal("Alice has disconnected. Waiting for a new partner...", gone.Content)
	req.NoError(alice.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, _, err := alice.ReadMessage()
	req.Error(err)
}

func TestChatHandler_ThrottlesMessages(t *testing.T) {
	req := require.New(t)
	url := newChatServer(t, &ChatHandler{MessagesPerSecond: 0.001, MessageBurst: 1})
	alice := dial(t, url)

	send(t, alice, core.Envelope{Type: core.TypeChat, Sender: "Alice", Content: "one"})
	req.Equal("You are not connected to a chat partner yet.", read(t, alice).Content)

	send(t, alice, core.Envelope{Type: core.TypeChat, Sender: "Alice", Content: "two"})
	req.Equal("You are sending messages too fast.", read(t, alice).Content)
}

func TestChatHandler_ConnectRateLimit(t *testing.T) {
	req := require.New(t)
	limiter := core.NewRateLimiter(1, time.Minute, 10, clock.NewMock())
	url := newChatServer(t, &ChatHandler{ConnectLimiter: limiter})

	dial(t, url)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusTooManyRequests, resp.StatusCode)
}

func TestRemoteIP(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		fwd    string
		trust  bool
		want   string
	}{
		{name: "host port", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "ipv6", remote: "[::1]:5555", want: "::1"},
		{name: "no port", remote: "10.0.0.1", want: "10.0.0.1"},
		{name: "forwarded ignored by default", remote: "10.0.0.1:5555", fwd: "203.0.113.7", want: "10.0.0.1"},
		{name: "forwarded behind proxy", remote: "10.0.0.1:5555", fwd: "203.0.113.7, 10.0.0.1", trust: true, want: "203.0.113.7"},
		{name: "empty forwarded behind proxy", remote: "10.0.0.1:5555", fwd: " ", trust: true, want: "10.0.0.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/chat", nil)
			r.RemoteAddr = tc.remote
			if tc.fwd != "" {
				r.Header.Set("X-Forwarded-For", tc.fwd)
			}
			require.Equal(t, tc.want, remoteIP(r, tc.trust))
		})
	}
}

func TestChatHandler_ConnectRateLimit_IgnoresForgedForwardedFor(t *testing.T) {
	req := require.New(t)
	limiter := core.NewRateLimiter(1, time.Minute, 10, clock.NewMock())
	url := newChatServer(t, &ChatHandler{ConnectLimiter: limiter})

	dial(t, url)
	forged := http.Header{"X-Forwarded-For": {"198.51.100.23"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, forged)

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusTooManyRequests, resp.StatusCode)
}
