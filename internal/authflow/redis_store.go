package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFlowStore persists flows with a TTL so abandoned modals expire on
// their own.
type RedisFlowStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFlowStore(client *redis.Client, ttl time.Duration) *RedisFlowStore {
	return &RedisFlowStore{client: client, ttl: ttl}
}

func (s *RedisFlowStore) key(flowID string) string {
	return fmt.Sprintf("authflow:%s", flowID)
}

func (s *RedisFlowStore) Get(ctx context.Context, flowID string) (*Flow, error) {
	val, err := s.client.Get(ctx, s.key(flowID)).Bytes()
	if err == redis.Nil {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}

	var flow Flow
	if err := json.Unmarshal(val, &flow); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}
	return &flow, nil
}

func (s *RedisFlowStore) Save(ctx context.Context, flow *Flow) error {
	payload, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to encode flow: %w", err)
	}
	if err := s.client.Set(ctx, s.key(flow.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}
	return nil
}

func (s *RedisFlowStore) Delete(ctx context.Context, flowID string) error {
	if err := s.client.Del(ctx, s.key(flowID)).Err(); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	return nil
}
