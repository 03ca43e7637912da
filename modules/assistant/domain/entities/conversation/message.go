package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRole = errors.New("invalid role")

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// CSSClass is the class chat widgets style the bubble with.
func (r Role) CSSClass() string {
	switch r {
	case RoleUser:
		return "user-message"
	case RoleBot:
		return "bot-message"
	default:
		return ""
	}
}

type Message interface {
	ID() uuid.UUID
	Role() Role
	Text() string
	Timestamp() time.Time
}

type message struct {
	id        uuid.UUID
	role      Role
	text      string
	timestamp time.Time
}

// NewMessage trims text and rejects blank or oversized input. A nil id or a
// zero timestamp is replaced with a fresh one.
func NewMessage(id uuid.UUID, role Role, text string, timestamp time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	switch role {
	case RoleUser, RoleBot:
	default:
		return nil, ErrInvalidRole
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	return &message{id: id, role: role, text: text, timestamp: timestamp}, nil
}

func MustNewMessage(role Role, text string) Message {
	msg, err := NewMessage(uuid.Nil, role, text, time.Time{})
	if err != nil {
		panic(err)
	}
	return msg
}

func (m *message) ID() uuid.UUID {
	return m.id
}

func (m *message) Role() Role {
	return m.role
}

func (m *message) Text() string {
	return m.text
}

func (m *message) Timestamp() time.Time {
	return m.timestamp
}
