package ws

import (
	"testing"

	"github.com/Ap1297/Random-Chat-Application/internal/core"
	"github.com/stretchr/testify/require"
)

func TestClientConn_SendNeverBlocks(t *testing.T) {
	req := require.New(t)
	c := &ClientConn{send: make(chan core.Envelope, 1), closed: make(chan struct{})}

	req.NoError(c.Send(core.Envelope{Type: core.TypeSystem}))
	req.ErrorIs(c.Send(core.Envelope{Type: core.TypeSystem}), core.ErrSendBufferFull)
	req.True(c.Open())

	close(c.closed)
	req.False(c.Open())
	req.ErrorIs(c.Send(core.Envelope{Type: core.TypeSystem}), core.ErrSessionClosed)
}
