package services

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/serrors"
)

// FallbackReply is appended as the bot message when the asker fails.
const FallbackReply = "Error: Unable to fetch response."

var ErrReplyPending = serrors.NewError("REPLY_PENDING", "a reply is still pending for this conversation", "Assistant.Errors.ReplyPending")

// Asker answers one user query. The backend proxy and the OpenAI client
// both satisfy it.
type Asker interface {
	Ask(ctx context.Context, userQuery string) (string, error)
}

type ChatService struct {
	repo  conversation.Repository
	asker Asker
	// mu serialises read-modify-write cycles on the repository.
	mu sync.Mutex
}

func NewChatService(repo conversation.Repository, asker Asker) *ChatService {
	if repo == nil || asker == nil {
		panic("assistant: chat service requires a repository and an asker")
	}
	return &ChatService{repo: repo, asker: asker}
}

func (s *ChatService) Create(ctx context.Context) (conversation.Conversation, error) {
	return s.repo.Save(ctx, conversation.New())
}

func (s *ChatService) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ChatService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// SendMessage runs one chat turn. The user message is stored and the
// conversation marked pending before the asker is called, so readers see the
// question while the reply is outstanding. A failed ask still completes the
// turn with FallbackReply; only validation and storage errors are returned.
func (s *ChatService) SendMessage(ctx context.Context, id uuid.UUID, text string) (conversation.Conversation, error) {
	logger := composables.UseLogger(ctx).WithField("conversation_id", id)

	userMsg, err := conversation.NewMessage(uuid.Nil, conversation.RoleUser, text, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.beginTurn(ctx, id, userMsg); err != nil {
		return nil, err
	}

	reply, askErr := s.asker.Ask(ctx, userMsg.Text())
	botMsg, msgErr := conversation.NewMessage(uuid.Nil, conversation.RoleBot, clip(reply), time.Now())
	if askErr == nil && msgErr != nil {
		askErr = msgErr
	}
	recordReply(askErr)
	if askErr != nil {
		logger.WithError(askErr).Error("assistant reply failed")
		botMsg = conversation.MustNewMessage(conversation.RoleBot, FallbackReply)
	} else {
		logger.WithFields(logrus.Fields{
			"query_length": len(userMsg.Text()),
			"reply_length": len(botMsg.Text()),
		}).Debug("assistant replied")
	}

	return s.finishTurn(context.WithoutCancel(ctx), id, botMsg)
}

func (s *ChatService) beginTurn(ctx context.Context, id uuid.UUID, msg conversation.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Pending() {
		return ErrReplyPending
	}
	_, err = s.repo.Save(ctx, c.AppendMessage(msg).WithPending(true))
	return err
}

func (s *ChatService) finishTurn(ctx context.Context, id uuid.UUID, msg conversation.Message) (conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.repo.Save(ctx, c.AppendMessage(msg).WithPending(false))
}

// clip cuts reply to the maximum message length without splitting a rune.
func clip(reply string) string {
	reply = strings.TrimSpace(reply)
	if len(reply) <= conversation.MaxMessageLength {
		return reply
	}
	cut := conversation.MaxMessageLength
	for cut > 0 && !utf8.RuneStart(reply[cut]) {
		cut--
	}
	return reply[:cut]
}
