package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

type RedisPromotionCache struct {
	client *redis.Client
}

func NewRedisPromotionCache(addr string, password string, db int) *RedisPromotionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPromotionCache{client: client}
}

func (c *RedisPromotionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPromotionCache) Close() error {
	return c.client.Close()
}

func (c *RedisPromotionCache) Get(ctx context.Context, key string) ([]domain.Promotion, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var promos []domain.Promotion
	if err := json.Unmarshal([]byte(val), &promos); err != nil {
		return nil, false, err
	}
	return promos, true, nil
}

func (c *RedisPromotionCache) Set(ctx context.Context, key string, promos []domain.Promotion, ttl time.Duration) error {
	payload, err := json.Marshal(promos)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisPromotionCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
