package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type MessageType string

const (
	TypeChat                MessageType = "CHAT"
	TypeJoin                MessageType = "JOIN"
	TypeLeave               MessageType = "LEAVE"
	TypeFindNew             MessageType = "FIND_NEW"
	TypeSystem              MessageType = "SYSTEM"
	TypePartnerConnected    MessageType = "PARTNER_CONNECTED"
	TypePartnerDisconnected MessageType = "PARTNER_DISCONNECTED"
	TypeUsers               MessageType = "USERS"
)

// SystemSender is the sender name of every server-generated envelope.
const SystemSender = "system"

// TimestampLayout parses any timestamp FormatTimestamp produces except the
// minute-only form.
const TimestampLayout = "2006-01-02T15:04:05.999999999"

// FormatTimestamp renders an ISO-8601 local date-time without zone. Seconds
// are left out when they and the fraction are zero; a fraction is written
// with 3, 6 or 9 digits.
func FormatTimestamp(t time.Time) string {
	out := t.Format("2006-01-02T15:04")
	ns := t.Nanosecond()
	if t.Second() == 0 && ns == 0 {
		return out
	}
	out += t.Format(":05")
	switch {
	case ns == 0:
	case ns%int(time.Millisecond) == 0:
		out += fmt.Sprintf(".%03d", ns/int(time.Millisecond))
	case ns%int(time.Microsecond) == 0:
		out += fmt.Sprintf(".%06d", ns/int(time.Microsecond))
	default:
		out += fmt.Sprintf(".%09d", ns)
	}
	return out
}

// Envelope is the JSON message exchanged over a /chat websocket.
type Envelope struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type" validate:"required,oneof=CHAT JOIN LEAVE FIND_NEW SYSTEM PARTNER_CONNECTED PARTNER_DISCONNECTED USERS"`
	Sender    string      `json:"sender,omitempty"`
	Content   string      `json:"content,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Users     []string    `json:"users,omitempty"`
	IsGif     bool        `json:"isGif,omitempty"`
}

func NewEnvelope(clk clock.Clock, msgType MessageType, sender, content string) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      msgType,
		Sender:    sender,
		Content:   content,
		Timestamp: FormatTimestamp(clk.Now()),
	}
}

func NewSystemEnvelope(clk clock.Clock, msgType MessageType, content string) Envelope {
	return NewEnvelope(clk, msgType, SystemSender, content)
}

// NewUsersEnvelope lists the pair, the recipient first.
func NewUsersEnvelope(clk clock.Clock, self, partner string) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      TypeUsers,
		Timestamp: FormatTimestamp(clk.Now()),
		Users:     []string{self, partner},
	}
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Command is an inbound envelope decoded into the action it requests.
type Command interface {
	command()
}

// JoinCommand carries the trimmed display name. A blank name joins
// anonymously.
type JoinCommand struct {
	Name string `validate:"max=64"`
}

type LeaveCommand struct{}

type FindNewCommand struct{}

// ForwardCommand carries any content envelope meant for the partner.
type ForwardCommand struct {
	Envelope Envelope
}

func (JoinCommand) command()    {}
func (LeaveCommand) command()   {}
func (FindNewCommand) command() {}
func (ForwardCommand) command() {}

var validate = validator.New()

// DecodeCommand parses one text frame. Any failure wraps ErrMalformedEnvelope.
func DecodeCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch env.Type {
	case TypeJoin:
		join := JoinCommand{Name: strings.TrimSpace(env.Sender)}
		if err := validate.Struct(join); err != nil {
			return nil, fmt.Errorf("%w: join: %v", ErrMalformedEnvelope, err)
		}
		return join, nil
	case TypeLeave:
		return LeaveCommand{}, nil
	case TypeFindNew:
		return FindNewCommand{}, nil
	default:
		return ForwardCommand{Envelope: env}, nil
	}
}
