package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("empty message")
	ErrMessageTooLong       = errors.New("message too long")
)

const (
	MaxMessageLength = 4096
	MaxMessages      = 200
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Conversation, error)
	Save(ctx context.Context, c Conversation) (Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Conversation is a value: AppendMessage and WithPending return copies.
type Conversation interface {
	ID() uuid.UUID
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Messages() []Message
	// Pending reports an unanswered user message.
	Pending() bool
	AppendMessage(msg Message) Conversation
	WithPending(pending bool) Conversation
}

type conversation struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
	pending   bool
	messages  []Message
}

func New(opts ...Option) Conversation {
	now := time.Now()
	c := &conversation{
		id:        uuid.New(),
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*conversation)

func WithID(id uuid.UUID) Option {
	return func(c *conversation) {
		if id != uuid.Nil {
			c.id = id
		}
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(c *conversation) {
		if !createdAt.IsZero() {
			c.createdAt = createdAt
		}
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(c *conversation) {
		if !updatedAt.IsZero() {
			c.updatedAt = updatedAt
		}
	}
}

func WithPending(pending bool) Option {
	return func(c *conversation) {
		c.pending = pending
	}
}

func WithMessages(messages []Message) Option {
	return func(c *conversation) {
		c.messages = capMessages(append([]Message(nil), messages...))
	}
}

func (c *conversation) ID() uuid.UUID {
	return c.id
}

func (c *conversation) CreatedAt() time.Time {
	return c.createdAt
}

func (c *conversation) UpdatedAt() time.Time {
	return c.updatedAt
}

func (c *conversation) Pending() bool {
	return c.pending
}

func (c *conversation) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

func (c *conversation) AppendMessage(msg Message) Conversation {
	if msg == nil {
		return c
	}
	next := c.copy()
	next.messages = capMessages(append(next.messages, msg))
	next.updatedAt = msg.Timestamp()
	return next
}

func (c *conversation) WithPending(pending bool) Conversation {
	next := c.copy()
	next.pending = pending
	return next
}

func (c *conversation) copy() *conversation {
	next := *c
	next.messages = append(make([]Message, 0, len(c.messages)+1), c.messages...)
	return &next
}

func capMessages(messages []Message) []Message {
	if len(messages) > MaxMessages {
		return messages[len(messages)-MaxMessages:]
	}
	return messages
}
