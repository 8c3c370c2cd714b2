package ws

import (
	"sync"
	"time"

	"github.com/Ap1297/Random-Chat-Application/internal/core"
	"github.com/gorilla/websocket"
)

// ClientConn owns the write side of one browser connection. gorilla allows a
// single concurrent writer, so every frame goes through writeLoop.
type ClientConn struct {
	conn         *websocket.Conn
	send         chan core.Envelope
	closed       chan struct{}
	once         sync.Once
	writeTimeout time.Duration
	pingPeriod   time.Duration
}

func NewClientConn(conn *websocket.Conn, buffer int, writeTimeout, pingPeriod time.Duration) *ClientConn {
	if buffer <= 0 {
		buffer = 64
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &ClientConn{
		conn:         conn,
		send:         make(chan core.Envelope, buffer),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
		pingPeriod:   pingPeriod,
	}
}

// Send queues env without blocking.
func (c *ClientConn) Send(env core.Envelope) error {
	select {
	case <-c.closed:
		return core.ErrSessionClosed
	default:
	}
	select {
	case c.send <- env:
		return nil
	default:
		return core.ErrSendBufferFull
	}
}

func (c *ClientConn) Open() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *ClientConn) writeLoop() {
	var ping <-chan time.Time
	if c.pingPeriod > 0 {
		ticker := time.NewTicker(c.pingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-c.closed:
			return
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(env); err != nil {
				c.Close()
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				c.Close()
				return
			}
		}
	}
}
