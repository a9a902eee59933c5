package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production implementation for deployments where several
// server instances share session bookkeeping. Forward entries and reverse
// sets carry a TTL so refs orphaned by the logout/login race expire lazily.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithTTL sets the expiry applied to forward entries and reverse sets.
// Zero means no expiry.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore constructs a Redis-backed session store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key Key) (string, error) {
	v, err := s.client.Get(ctx, key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key.Namespace, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, sessionID string) error {
	if err := s.client.Set(ctx, key.String(), sessionID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key.Namespace, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key.Namespace, err)
	}
	return nil
}

func (s *RedisStore) AddMember(ctx context.Context, key Key, member Member) error {
	k := key.String()
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, k, string(member))
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis sadd %s: %w", key.Namespace, err)
	}
	return nil
}

func (s *RedisStore) Members(ctx context.Context, key Key) ([]Member, error) {
	raw, err := s.client.SMembers(ctx, key.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", key.Namespace, err)
	}
	members := make([]Member, 0, len(raw))
	for _, m := range raw {
		members = append(members, Member(m))
	}
	return members, nil
}
