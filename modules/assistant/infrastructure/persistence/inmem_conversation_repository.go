package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
	"github.com/iota-uz/provisioning-sdk/pkg/safemap"
)

type InmemConversationRepository struct {
	storage *safemap.SafeMap[uuid.UUID, conversation.Conversation]
}

func NewInmemConversationRepository() *InmemConversationRepository {
	return &InmemConversationRepository{
		storage: safemap.New[uuid.UUID, conversation.Conversation](),
	}
}

func (r *InmemConversationRepository) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	c, found := r.storage.Get(id)
	if !found {
		return nil, conversation.ErrConversationNotFound
	}
	return c, nil
}

func (r *InmemConversationRepository) Save(_ context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	r.storage.Set(c.ID(), c)
	return c, nil
}

func (r *InmemConversationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.storage.Delete(id)
	return nil
}
