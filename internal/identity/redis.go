package identity

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// defaultRedisKey is the single key holding the cart identifier.
const defaultRedisKey = "sidecart:cart_id"

// RedisStore persists the cart identifier under one redis key.
type RedisStore struct {
	cli *redis.Client
	key string
}

// NewRedisStore creates a redis-backed store. key defaults to
// "sidecart:cart_id" when empty.
func NewRedisStore(cli *redis.Client, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{cli: cli, key: key}
}

func (s *RedisStore) Get(ctx context.Context) (string, bool, error) {
	out := s.cli.Get(ctx, s.key)
	if err := out.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	if out.Val() == "" {
		return "", false, nil
	}
	return out.Val(), true, nil
}

func (s *RedisStore) Set(ctx context.Context, cartID string) error {
	return s.cli.Set(ctx, s.key, cartID, 0).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.cli.Del(ctx, s.key).Err()
}
