package client

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusURL(t *testing.T) {
	for in, want := range map[string]string{
		"ws://localhost:8080/chat":    "http://localhost:8080/api/status",
		"wss://chat.example.com/chat": "https://chat.example.com/api/status",
		"http://localhost:8080":       "http://localhost:8080/api/status",
	} {
		got, err := StatusURL(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestFetchStatus_RendersTable(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"online","message":"Chat server is running","timestamp":1714566600000,"connections":3,"waiting":1,"pairs":1}`))
	}))
	defer srv.Close()

	st, err := FetchStatus(context.Background(), srv.Client(), srv.URL+"/api/status")
	req.NoError(err)
	req.Equal("online", st.Status)
	req.Equal(3, st.Connections)

	var out bytes.Buffer
	RenderStatus(&out, st)
	req.Contains(out.String(), "Chat server is running")
	req.Contains(out.String(), "2024-05-01T12:30:00Z")
	req.Contains(out.String(), "connections")
}

func TestFetchStatus_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := FetchStatus(context.Background(), nil, srv.URL)
	require.Error(t, err)
}
