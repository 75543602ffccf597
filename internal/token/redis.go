package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) cartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:cart_token", sessionID)
}

func (s *RedisStore) authKey(sessionID string) string {
	return fmt.Sprintf("session:%s:auth", sessionID)
}

func (s *RedisStore) prefsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:prefs", sessionID)
}

func (s *RedisStore) GetCartToken(ctx context.Context, sessionID string) string {
	val, err := s.client.Get(ctx, s.cartKey(sessionID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.WarnContext(ctx, "Token store read failed, treating as guest", "error", err)
		}
		return ""
	}
	return val
}

func (s *RedisStore) SetCartToken(ctx context.Context, sessionID, token string) {
	if err := s.client.Set(ctx, s.cartKey(sessionID), token, s.ttl).Err(); err != nil {
		logger.WarnContext(ctx, "Token store write failed", "error", err)
	}
}

func (s *RedisStore) ClearCartToken(ctx context.Context, sessionID string) {
	if err := s.client.Del(ctx, s.cartKey(sessionID)).Err(); err != nil {
		logger.WarnContext(ctx, "Token store delete failed", "error", err)
	}
}

type authRecord struct {
	Bearer   string          `json:"bearer"`
	Customer domain.Customer `json:"customer"`
}

func (s *RedisStore) GetAuth(ctx context.Context, sessionID string) (string, *domain.Customer) {
	val, err := s.client.Get(ctx, s.authKey(sessionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.WarnContext(ctx, "Token store read failed, treating as logged out", "error", err)
		}
		return "", nil
	}

	var record authRecord
	if err := json.Unmarshal(val, &record); err != nil {
		logger.WarnContext(ctx, "Corrupt auth record, treating as logged out", "error", err)
		return "", nil
	}
	return record.Bearer, &record.Customer
}

func (s *RedisStore) SetAuth(ctx context.Context, sessionID, bearer string, customer domain.Customer) {
	payload, err := json.Marshal(authRecord{Bearer: bearer, Customer: customer})
	if err != nil {
		logger.WarnContext(ctx, "Failed to encode auth record", "error", err)
		return
	}
	if err := s.client.Set(ctx, s.authKey(sessionID), payload, s.ttl).Err(); err != nil {
		logger.WarnContext(ctx, "Token store write failed", "error", err)
	}
}

func (s *RedisStore) ClearAuth(ctx context.Context, sessionID string) {
	if err := s.client.Del(ctx, s.authKey(sessionID)).Err(); err != nil {
		logger.WarnContext(ctx, "Token store delete failed", "error", err)
	}
}

func (s *RedisStore) GetPreferences(ctx context.Context, sessionID string) (domain.Preferences, bool) {
	val, err := s.client.Get(ctx, s.prefsKey(sessionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.WarnContext(ctx, "Token store read failed", "error", err)
		}
		return domain.Preferences{}, false
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(val, &prefs); err != nil {
		logger.WarnContext(ctx, "Corrupt preferences record", "error", err)
		return domain.Preferences{}, false
	}
	return prefs, true
}

func (s *RedisStore) SetPreferences(ctx context.Context, sessionID string, prefs domain.Preferences) {
	payload, err := json.Marshal(prefs)
	if err != nil {
		logger.WarnContext(ctx, "Failed to encode preferences", "error", err)
		return
	}
	if err := s.client.Set(ctx, s.prefsKey(sessionID), payload, s.ttl).Err(); err != nil {
		logger.WarnContext(ctx, "Token store write failed", "error", err)
	}
}
