// Package session provides the Redis backend for refresh sessions. Redis
// holds only the token-hash -> user-id mapping with a TTL; the user record
// itself is re-read from the primary store on every lookup, so role changes
// take effect at the next token rotation without touching Redis.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskdeck/api/internal/store"
)

const keyPrefix = "refresh:"

// userLookup hydrates the session's user from the primary store.
type userLookup interface {
	GetUserByID(ctx context.Context, id string) (store.User, error)
}

type RedisStore struct {
	client *redis.Client
	users  userLookup
}

// NewRedisStore connects to the given redis URL and verifies the connection
// before returning.
func NewRedisStore(redisURL string, users userLookup) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, users), nil
}

// NewRedisStoreWithClient wraps an already-connected client, letting the
// caller share one client with other Redis consumers.
func NewRedisStoreWithClient(client *redis.Client, users userLookup) *RedisStore {
	return &RedisStore{client: client, users: users}
}

// SaveRefreshSession records tokenHash -> userID, expiring at expiresAt.
// Redis owns the expiry; there is no sweeper.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	if err := s.client.Set(ctx, keyPrefix+tokenHash, userID, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession resolves a token hash to its current user record.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	userID, err := s.client.Get(ctx, keyPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return store.User{}, errors.New("session not found or expired")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh session: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return store.User{}, fmt.Errorf("hydrate session user: %w", err)
	}
	return user, nil
}

// RevokeRefreshSession deletes the session; revoking an unknown hash is a
// no-op.
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, keyPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
