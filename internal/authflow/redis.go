package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "comfort:token:"

	// defaultTokenTTL caps how long a persisted pair is trusted. Ayla access
	// tokens live about 24h; a stale refresh token past that simply triggers
	// the login fallback, so erring long is harmless.
	defaultTokenTTL = 48 * time.Hour
)

// RedisStore implements Store backed by Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: defaultTokenTTL}
}

// SaveTokenPair stores the pair under the account key with the store TTL.
func (s *RedisStore) SaveTokenPair(ctx context.Context, username string, pair *TokenPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshaling token pair: %w", err)
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+username, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving token pair: %w", err)
	}
	return nil
}

// LoadTokenPair retrieves the stored pair, or (nil, nil) when absent.
func (s *RedisStore) LoadTokenPair(ctx context.Context, username string) (*TokenPair, error) {
	data, err := s.client.Get(ctx, tokenKeyPrefix+username).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading token pair: %w", err)
	}

	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("unmarshaling token pair: %w", err)
	}
	return &pair, nil
}

// DeleteTokenPair removes the stored pair for the account.
func (s *RedisStore) DeleteTokenPair(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, tokenKeyPrefix+username).Err(); err != nil {
		return fmt.Errorf("deleting token pair: %w", err)
	}
	return nil
}

// CheckHealth verifies the Redis backend is reachable.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	return nil
}
