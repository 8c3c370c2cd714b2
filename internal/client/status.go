package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Status mirrors the /api/status response.
type Status struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	Timestamp         int64  `json:"timestamp"`
	Connections       int    `json:"connections"`
	Waiting           int    `json:"waiting"`
	Pairs             int    `json:"pairs"`
	PairsCreated      uint64 `json:"pairs_created"`
	MessagesForwarded uint64 `json:"messages_forwarded"`
}

// StatusURL maps a server or websocket address to its /api/status URL.
func StatusURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/api/status"
	u.RawQuery = ""
	return u.String(), nil
}

func FetchStatus(ctx context.Context, hc *http.Client, statusURL string) (Status, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return Status{}, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func RenderStatus(w io.Writer, st Status) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk([][]string{
		{"status", st.Status},
		{"message", st.Message},
		{"server time", time.UnixMilli(st.Timestamp).UTC().Format(time.RFC3339)},
		{"connections", strconv.Itoa(st.Connections)},
		{"waiting", strconv.Itoa(st.Waiting)},
		{"pairs", strconv.Itoa(st.Pairs)},
		{"pairs created", strconv.FormatUint(st.PairsCreated, 10)},
		{"messages forwarded", strconv.FormatUint(st.MessagesForwarded, 10)},
	})
	table.Render()
}
