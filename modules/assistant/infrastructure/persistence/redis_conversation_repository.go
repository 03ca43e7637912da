package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/persistence/models"
)

const DefaultConversationKey = "assistant:conversations:v1"

// RedisConversationRepository keeps every conversation as one field of a
// single redis hash.
type RedisConversationRepository struct {
	redis   redis.UniversalClient
	hashKey string
}

func NewRedisConversationRepository(client redis.UniversalClient, hashKey string) *RedisConversationRepository {
	if hashKey == "" {
		hashKey = DefaultConversationKey
	}
	return &RedisConversationRepository{redis: client, hashKey: hashKey}
}

func (r *RedisConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	result, err := r.redis.HGet(ctx, r.hashKey, id.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, conversation.ErrConversationNotFound
		}
		return nil, err
	}
	var model models.Conversation
	if err := json.Unmarshal([]byte(result), &model); err != nil {
		return nil, err
	}
	return ToDomainConversation(model)
}

func (r *RedisConversationRepository) Save(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	data, err := json.Marshal(ToDBConversation(c))
	if err != nil {
		return nil, err
	}
	if err := r.redis.HSet(ctx, r.hashKey, c.ID().String(), data).Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *RedisConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.redis.HDel(ctx, r.hashKey, id.String()).Err()
}
