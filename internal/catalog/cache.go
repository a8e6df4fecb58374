package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_laundry/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(ctx context.Context) ([]domain.Service, error)
	Set(ctx context.Context, services []domain.Service) error
	Delete(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

const cacheKey = "catalog:active"

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context) ([]domain.Service, error) {
	data, err := r.client.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var services []domain.Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("unmarshal catalog failed: %w", err)
	}
	return services, nil
}

func (r RedisCache) Set(ctx context.Context, services []domain.Service) error {
	data, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("marshal catalog failed: %w", err)
	}

	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/5) + 1))
	if err := r.client.Set(ctx, cacheKey, data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// NopCache never holds anything; every read is a miss.
type NopCache struct{}

func (NopCache) Get(context.Context) ([]domain.Service, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, []domain.Service) error   { return nil }
func (NopCache) Delete(context.Context) error                  { return nil }
