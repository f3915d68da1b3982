package chatstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ng12-risk-assessor/internal/models"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore stores each session as a Redis list under "chat:<session>".
// A positive ttl is refreshed on every append.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{
		client: client,
		ttl:    ttl,
	}
}

func key(sessionID string) string {
	return "chat:" + sessionID
}

func (s *redisStore) Append(ctx context.Context, sessionID string, turn models.ChatTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode chat turn: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key(sessionID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat turn: %w", err)
	}
	return nil
}

func (s *redisStore) History(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	items, err := s.client.LRange(ctx, key(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	turns := make([]models.ChatTurn, 0, len(items))
	for _, item := range items {
		var turn models.ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("failed to decode chat turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *redisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, key(sessionID)).Err()
}
