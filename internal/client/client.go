package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/core"
	"github.com/benbjohnson/clock"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	cmdNext = "/next"
	cmdGif  = "/gif"
	cmdQuit = "/quit"

	joinContent = "Looking for a chat partner..."
)

var errQuit = errors.New("user quit")

// Client is an interactive terminal peer for the /chat endpoint.
type Client struct {
	URL     string
	Name    string
	In      io.Reader
	Out     io.Writer
	Colours bool
	Clock   clock.Clock

	// MaxBackoff caps the reconnect delay.
	MaxBackoff time.Duration

	outMu sync.Mutex
}

// Run keeps a session open until ctx ends, stdin closes or the user types
// /quit. Dropped connections are redialed with exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("display name required")
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 8 * time.Second
	}
	lines := readLines(ctx, c.In)

	backoff := time.Second
	for {
		connected, err := c.runOnce(ctx, lines)
		if errors.Is(err, errQuit) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			slog.Warn("chat ws disconnected", "url", c.URL, "err", err)
			c.printf(color.New(color.FgYellow), "* connection lost, retrying in %s", backoff)
		}
		if connected {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return nil
		case <-c.Clock.After(backoff):
		}
		if backoff < c.MaxBackoff {
			backoff *= 2
		}
	}
}

func (c *Client) runOnce(ctx context.Context, lines <-chan string) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	slog.Debug("chat ws connected", "url", c.URL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		for {
			var env core.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return fmt.Errorf("read: %w", err)
			}
			c.render(env)
		}
	})
	g.Go(func() error {
		join := core.NewEnvelope(c.Clock, core.TypeJoin, c.Name, joinContent)
		if err := c.write(conn, join); err != nil {
			return err
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return c.quit(conn)
				}
				env, ok := ParseInput(line, c.Name, c.Clock)
				if !ok {
					continue
				}
				if env.Type == core.TypeLeave {
					return c.quit(conn)
				}
				if err := c.write(conn, env); err != nil {
					return err
				}
				if env.Type == core.TypeChat {
					c.render(env)
				}
			}
		}
	})
	return true, g.Wait()
}

func (c *Client) write(conn *websocket.Conn, env core.Envelope) error {
	_ = conn.SetWriteDeadline(c.Clock.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", env.Type, err)
	}
	return nil
}

func (c *Client) quit(conn *websocket.Conn) error {
	_ = c.write(conn, core.NewEnvelope(c.Clock, core.TypeLeave, c.Name, ""))
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = conn.WriteControl(websocket.CloseMessage, msg, c.Clock.Now().Add(time.Second))
	return errQuit
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// ParseInput turns one typed line into an outbound envelope. Blank lines and
// a bare /gif yield ok=false. /quit yields a LEAVE envelope.
func ParseInput(line, name string, clk clock.Clock) (core.Envelope, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return core.Envelope{}, false
	}
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case cmdNext:
		return core.NewEnvelope(clk, core.TypeFindNew, name, ""), true
	case cmdQuit:
		return core.NewEnvelope(clk, core.TypeLeave, name, ""), true
	case cmdGif:
		if len(fields) < 2 {
			return core.Envelope{}, false
		}
		env := core.NewEnvelope(clk, core.TypeChat, name, fields[1])
		env.IsGif = true
		return env, true
	}
	return core.NewEnvelope(clk, core.TypeChat, name, line), true
}

// ShouldDisplay hides partner notices that only name the local user.
func ShouldDisplay(env core.Envelope, self string) bool {
	switch env.Type {
	case core.TypeUsers:
		return !lo.EveryBy(env.Users, func(u string) bool { return u == self })
	case core.TypePartnerConnected:
		return strings.TrimPrefix(env.Content, "You are now chatting with ") != self
	}
	return true
}

func (c *Client) render(env core.Envelope) {
	if !ShouldDisplay(env, c.Name) {
		return
	}
	switch env.Type {
	case core.TypeSystem:
		c.printf(color.New(color.FgDarkGray), "* %s", env.Content)
	case core.TypePartnerConnected:
		c.printf(color.New(color.FgGreen, color.OpBold), "* %s", env.Content)
	case core.TypePartnerDisconnected:
		c.printf(color.New(color.FgYellow), "* %s", env.Content)
	case core.TypeUsers:
		c.printf(color.New(color.FgCyan), "* in this chat: %s", strings.Join(env.Users, ", "))
	case core.TypeChat:
		body := env.Content
		if env.IsGif {
			body = "[gif] " + body
		}
		style := color.New(color.FgMagenta)
		if env.Sender == c.Name {
			style = color.New(color.FgBlue)
		}
		c.printf(style, "[%s] %s: %s", clockTime(env.Timestamp), env.Sender, body)
	default:
		slog.Debug("ignoring envelope", "type", env.Type)
	}
}

func (c *Client) printf(style color.Style, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if c.Colours {
		line = style.Render(line)
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprintln(c.Out, line)
}

// clockTime shortens a wire timestamp to HH:MM, or returns it unchanged.
func clockTime(ts string) string {
	for _, layout := range []string{core.TimestampLayout, "2006-01-02T15:04", time.RFC3339Nano} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format("15:04")
		}
	}
	return ts
}

// NormalizeWSURL accepts http(s) server addresses and appends /chat when no
// path is given.
func NormalizeWSURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/chat"
	}
	return u.String(), nil
}
