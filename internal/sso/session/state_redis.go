package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hihaowen/easysso/internal/sso/models"
)

const (
	fieldLoginID   = "login_id"
	fieldLoginName = "login_name"
)

// RedisState stores session identities as Redis hashes so every server
// instance sees the same login state.
type RedisState struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisState constructs a Redis-backed identity state. A non-zero ttl
// bounds how long an idle session survives.
func NewRedisState(client *redis.Client, ttl time.Duration) *RedisState {
	return &RedisState{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "sso:session:" + url.QueryEscape(sessionID)
}

func (s *RedisState) Get(ctx context.Context, sessionID string) (models.LoginUser, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.LoginUser{}, fmt.Errorf("redis hgetall session: %w", err)
	}
	return models.LoginUser{
		LoginID:   fields[fieldLoginID],
		LoginName: fields[fieldLoginName],
	}, nil
}

func (s *RedisState) Set(ctx context.Context, sessionID string, user models.LoginUser) error {
	key := sessionKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, fieldLoginID, user.LoginID, fieldLoginName, user.LoginName)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset session: %w", err)
	}
	return nil
}

func (s *RedisState) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.HDel(ctx, sessionKey(sessionID), fieldLoginID, fieldLoginName).Err(); err != nil {
		return fmt.Errorf("redis hdel session: %w", err)
	}
	return nil
}
