package persistence

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/persistence/models"
)

func ToDBConversation(c conversation.Conversation) models.Conversation {
	messages := make([]models.ConversationMessage, 0, len(c.Messages()))
	for _, msg := range c.Messages() {
		messages = append(messages, models.ConversationMessage{
			ID:        msg.ID().String(),
			Role:      string(msg.Role()),
			Text:      msg.Text(),
			Timestamp: msg.Timestamp(),
		})
	}
	return models.Conversation{
		ID:        c.ID().String(),
		CreatedAt: c.CreatedAt(),
		UpdatedAt: c.UpdatedAt(),
		Pending:   c.Pending(),
		Messages:  messages,
	}
}

func ToDomainConversation(model models.Conversation) (conversation.Conversation, error) {
	id, err := uuid.Parse(model.ID)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to parse UUID from string: %s", model.ID))
	}

	messages := make([]conversation.Message, 0, len(model.Messages))
	for _, m := range model.Messages {
		msgID, err := uuid.Parse(m.ID)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to parse message UUID from string: %s", m.ID))
		}
		msg, err := conversation.NewMessage(msgID, conversation.Role(m.Role), m.Text, m.Timestamp)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return conversation.New(
		conversation.WithID(id),
		conversation.WithCreatedAt(model.CreatedAt),
		conversation.WithUpdatedAt(model.UpdatedAt),
		conversation.WithPending(model.Pending),
		conversation.WithMessages(messages),
	), nil
}
