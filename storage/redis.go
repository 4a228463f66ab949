package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"umsagent/model"
)

const (
	conversationPrefix  = "conversation:"
	conversationListKey = "conversations:list"
)

// RedisStore keeps each conversation as a JSON string under
// "conversation:<id>" and maintains a sorted set of ids scored by last
// update time for recency-ordered listing.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *RedisStore) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation %s: %w", conv.ID, err)
	}

	if err := s.client.Set(ctx, conversationPrefix+conv.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}

	score := float64(conv.UpdatedAt.Unix())
	if err := s.client.ZAdd(ctx, conversationListKey, redis.Z{Score: score, Member: conv.ID}).Err(); err != nil {
		return fmt.Errorf("index conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *RedisStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	data, err := s.client.Get(ctx, conversationPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation %s: %w", id, err)
	}
	return &conv, nil
}

func (s *RedisStore) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	ids, err := s.client.ZRevRange(ctx, conversationListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]model.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		conv, err := s.GetConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			// Index entry outlived the record; skip it.
			continue
		}
		summaries = append(summaries, conv.Summary())
	}
	return summaries, nil
}

func (s *RedisStore) DeleteConversation(ctx context.Context, id string) (bool, error) {
	deleted, err := s.client.Del(ctx, conversationPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if err := s.client.ZRem(ctx, conversationListKey, id).Err(); err != nil {
		return false, fmt.Errorf("unindex conversation %s: %w", id, err)
	}
	return deleted > 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
