package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

const redisKeyPrefix = "mailproof:proof:"

// redisCache implements Redis-based caching
type redisCache struct {
	client *redis.Client
	config CacheConfig
}

// newRedisCache creates a new Redis cache client
func newRedisCache(config CacheConfig) (*redisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisCache{
		client: client,
		config: config,
	}, nil
}

func (rc *redisCache) get(ctx context.Context, campaignID string) (*models.ProofResult, error) {
	data, err := rc.client.Get(ctx, redisKeyPrefix+campaignID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("Redis get error: %w", err)
	}

	var result models.ProofResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("JSON unmarshal error: %w", err)
	}

	return &result, nil
}

// set stores a proof; ttl of zero means no expiration
func (rc *redisCache) set(ctx context.Context, campaignID string, result *models.ProofResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("JSON marshal error: %w", err)
	}

	if err := rc.client.Set(ctx, redisKeyPrefix+campaignID, data, ttl).Err(); err != nil {
		return fmt.Errorf("Redis set error: %w", err)
	}

	return nil
}

func (rc *redisCache) delete(ctx context.Context, campaignID string) error {
	if err := rc.client.Del(ctx, redisKeyPrefix+campaignID).Err(); err != nil {
		return fmt.Errorf("Redis delete error: %w", err)
	}
	return nil
}

// clear removes all proof keys from Redis
func (rc *redisCache) clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := rc.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("Redis scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("Redis delete error: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// close closes the Redis connection
func (rc *redisCache) close() error {
	return rc.client.Close()
}

// healthCheck checks Redis connection health
func (rc *redisCache) healthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}
