package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"insta-poster-bot/internal/domain"
)

// RedisCache реализует domain.Cache и domain.BlobStore через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

var _ domain.Cache = (*RedisCache)(nil)
var _ domain.BlobStore = (*RedisCache)(nil)

// Once выполняет функцию, если ключ ещё не задан.
func (c *RedisCache) Once(key string, ttl time.Duration, fn func() error) error {
	ctx := context.Background()
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return err
	}
	return nil
}

// Save атомарно записывает блоб целиком (SET заменяет значение одним действием).
func (c *RedisCache) Save(key string, blob []byte) error {
	return c.client.Set(context.Background(), key, blob, 0).Err()
}

// Load возвращает блоб или domain.ErrSessionBlobMissing.
func (c *RedisCache) Load(key string) ([]byte, error) {
	data, err := c.client.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionBlobMissing
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
