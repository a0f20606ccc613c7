package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payroute/internal/models"
	keys "payroute/internal/utils/cache"

	"github.com/redis/go-redis/v9"
)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// Routing config caching. Only policy rows are cached; PSP rows carry
// capacity and activation flags that must be read fresh.
func (s *CacheService) GetRoutingConfig(ctx context.Context, storeID uint) (*models.RoutingConfig, bool, error) {
	var cfg models.RoutingConfig
	found, err := s.Get(ctx, keys.RoutingConfigKey(storeID), &cfg)
	if err != nil || !found {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (s *CacheService) SetRoutingConfig(ctx context.Context, cfg *models.RoutingConfig) error {
	if cfg == nil {
		return errors.New("cannot cache nil routing config")
	}
	return s.Set(ctx, keys.RoutingConfigKey(cfg.StoreID), cfg)
}

func (s *CacheService) InvalidateRoutingConfig(ctx context.Context, storeID uint) error {
	return s.Delete(ctx, keys.RoutingConfigKey(storeID))
}

// FlushRouting removes every cached routing config.
func (s *CacheService) FlushRouting(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keys.RoutingConfigPattern(), 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return s.client.Del(ctx, batch...).Err()
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
