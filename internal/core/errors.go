package core

import "errors"

var (
	ErrDuplicateSession  = errors.New("session already registered")
	ErrUnknownSession    = errors.New("session not found")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrSessionClosed     = errors.New("session closed")
	ErrSendBufferFull    = errors.New("send buffer full")
	ErrAlreadyPaired     = errors.New("session already paired")
)
