package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session lifetime. Refreshed on every authenticated request.
const sessionTTL = 7 * 24 * time.Hour

const sessionPrefix = "sessao:"

// RedisStore handles session storage in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store from a redis:// URL.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() {
	_ = s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware that needs raw access.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// CreateSession mints an opaque session token for the user and stores it with
// the session TTL.
func (s *RedisStore) CreateSession(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	key := sessionPrefix + token

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key,
		"usuario_id", strconv.FormatInt(userID, 10),
		"criado_em", time.Now().UTC().Format(time.RFC3339),
	)
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}

	return token, nil
}

// GetSessionUserID resolves a session token to a user id, sliding the TTL
// forward. Returns (0, nil) when the session does not exist or has expired.
func (s *RedisStore) GetSessionUserID(ctx context.Context, token string) (int64, error) {
	key := sessionPrefix + token

	val, err := s.client.HGet(ctx, key, "usuario_id").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}

	// Sliding expiration: active sessions stay alive.
	s.client.Expire(ctx, key, sessionTTL)

	return userID, nil
}

// DeleteSession removes a session token. Idempotent.
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionPrefix+token).Err()
}
