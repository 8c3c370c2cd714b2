package core

// Sender is the transport's outbound handle for one connection.
// Send must not block.
type Sender interface {
	Send(env Envelope) error
	Open() bool
}

type Session struct {
	ID     string
	Name   string
	Sender Sender
}

type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateWaiting SessionState = "waiting"
	StatePaired  SessionState = "paired"
)

// Stats is a point-in-time view of the relay.
type Stats struct {
	Connections       int    `json:"connections"`
	Waiting           int    `json:"waiting"`
	Pairs             int    `json:"pairs"`
	PairsCreated      uint64 `json:"pairs_created"`
	MessagesForwarded uint64 `json:"messages_forwarded"`
}
