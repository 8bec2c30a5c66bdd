package config

import (
	"context"

	"github.com/prajwalbharadwajbm/mailproof/internal/cache"
)

// GetCacheConfig reads the proof cache settings from the environment.
// PROOF_CACHE_TTL defaults to zero: entries live until they are invalidated.
func GetCacheConfig() cache.CacheConfig {
	return cache.CacheConfig{
		DefaultTTL:      getEnvDuration("PROOF_CACHE_TTL", 0),
		MemoryCacheSize: getEnvInt("CACHE_MEMORY_SIZE", 1000),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		EnableMemory:    getEnvBool("CACHE_ENABLE_MEMORY", true),
		EnableRedis:     getEnvBool("CACHE_ENABLE_REDIS", false),
	}
}

// CacheHealthCheck describes both proof cache tiers for the health endpoint.
type CacheHealthCheck struct {
	Memory struct {
		Enabled bool `json:"enabled"`
		MaxSize int  `json:"max_size"`
		Entries int  `json:"entries"`
	} `json:"memory"`
	Redis struct {
		Enabled   bool   `json:"enabled"`
		Connected bool   `json:"connected"`
		Address   string `json:"address"`
	} `json:"redis"`
	Stats cache.CacheStats `json:"stats"`
}

// GetCacheHealth reports tier settings, entry count, hit statistics and Redis reachability.
func GetCacheHealth(ctx context.Context, cfg cache.CacheConfig, hc *cache.HybridCache) CacheHealthCheck {
	var health CacheHealthCheck

	health.Memory.Enabled = cfg.EnableMemory
	health.Memory.MaxSize = cfg.MemoryCacheSize
	health.Memory.Entries = hc.Size()

	health.Redis.Enabled = cfg.EnableRedis
	health.Redis.Address = cfg.RedisAddr
	if cfg.EnableRedis {
		health.Redis.Connected = hc.HealthCheck(ctx) == nil
	}

	health.Stats = hc.GetStats()
	return health
}
