package tokenstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	tokenKey    = "imagefeed:token"
	usernameKey = "imagefeed:username"

	redisOpTimeout = 3 * time.Second
)

// RedisStore implements Store backed by Redis. Token and username are
// independent keys, matching the no-multi-key-transaction contract.
type RedisStore struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Token() string {
	return s.get(tokenKey)
}

func (s *RedisStore) SetToken(token string) {
	s.set(tokenKey, token)
}

func (s *RedisStore) Username() string {
	return s.get(usernameKey)
}

func (s *RedisStore) SetUsername(username string) {
	s.set(usernameKey, username)
}

func (s *RedisStore) IsValid() bool {
	return s.Token() != ""
}

func (s *RedisStore) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Del(ctx, tokenKey, usernameKey).Err(); err != nil && err != redis.Nil {
		s.log().Warn("clear session keys", zap.Error(err))
	}
}

func (s *RedisStore) get(key string) string {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.log().Warn("load session key", zap.String("key", key), zap.Error(err))
		}
		return ""
	}
	return value
}

func (s *RedisStore) set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		s.log().Warn("persist session key", zap.String("key", key), zap.Error(err))
	}
}

func (s *RedisStore) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
