package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

// ProofCache memoizes rendered proofs by campaign id.
//
// Writers call Reserve before rendering and pass the returned generation to Set.
// Invalidate bumps the generation, so a render that started before an edit can
// never overwrite the entry with stale HTML.
type ProofCache interface {
	Get(ctx context.Context, campaignID string) (*models.ProofResult, error)
	Reserve(campaignID string) uint64
	Set(ctx context.Context, campaignID string, generation uint64, result *models.ProofResult) error
	Invalidate(ctx context.Context, campaignID string) error
	InvalidateAll(ctx context.Context) error
	GetStats() CacheStats
}

// CacheStats holds cache performance statistics
type CacheStats struct {
	Hits          int64     `json:"hits"`
	Misses        int64     `json:"misses"`
	Errors        int64     `json:"errors"`
	Invalidations int64     `json:"invalidations"`
	StaleWrites   int64     `json:"stale_writes"`
	HitRatio      float64   `json:"hit_ratio"`
	TotalOps      int64     `json:"total_ops"`
	LastUpdated   time.Time `json:"last_updated"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	// DefaultTTL of zero keeps entries until they are invalidated.
	DefaultTTL      time.Duration
	MemoryCacheSize int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	EnableMemory    bool
	EnableRedis     bool
}

// HybridCache keeps proofs in process memory and, when enabled, in Redis.
type HybridCache struct {
	memoryCache *memoryCache
	redisCache  *redisCache
	config      CacheConfig

	// generation of a key is epoch plus its own counter; both only grow
	genMu       sync.Mutex
	epoch       uint64
	generations map[string]uint64

	stats CacheStats
	mu    sync.RWMutex
}

// NewHybridCache creates a new hybrid cache
func NewHybridCache(config CacheConfig) (*HybridCache, error) {
	hc := &HybridCache{
		config:      config,
		generations: make(map[string]uint64),
		stats: CacheStats{
			LastUpdated: time.Now(),
		},
	}

	if config.EnableMemory {
		hc.memoryCache = newMemoryCache(config.MemoryCacheSize)
	}

	if config.EnableRedis {
		var err error
		hc.redisCache, err = newRedisCache(config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
	}

	return hc, nil
}

// Get retrieves a proof (memory first, then Redis, then miss)
func (hc *HybridCache) Get(ctx context.Context, campaignID string) (*models.ProofResult, error) {
	if hc.memoryCache != nil {
		if result, found := hc.memoryCache.get(campaignID); found {
			hc.recordHit()
			return result, nil
		}
	}

	if hc.redisCache != nil {
		gen := hc.Reserve(campaignID)
		result, err := hc.redisCache.get(ctx, campaignID)
		if err == nil {
			hc.recordHit()
			// Warm memory cache unless an invalidation happened meanwhile
			if hc.memoryCache != nil {
				hc.genMu.Lock()
				if hc.generationLocked(campaignID) == gen {
					hc.memoryCache.set(campaignID, result, hc.config.DefaultTTL)
				}
				hc.genMu.Unlock()
			}
			return result, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			hc.recordError()
		}
	}

	hc.recordMiss()
	return nil, ErrCacheMiss
}

// Reserve returns the current generation for campaignID.
func (hc *HybridCache) Reserve(campaignID string) uint64 {
	hc.genMu.Lock()
	defer hc.genMu.Unlock()
	return hc.generationLocked(campaignID)
}

func (hc *HybridCache) generationLocked(campaignID string) uint64 {
	return hc.epoch + hc.generations[campaignID]
}

// Set stores result if campaignID has not been invalidated since generation was reserved.
func (hc *HybridCache) Set(ctx context.Context, campaignID string, generation uint64, result *models.ProofResult) error {
	hc.genMu.Lock()
	defer hc.genMu.Unlock()

	if hc.generationLocked(campaignID) != generation {
		hc.mu.Lock()
		hc.stats.StaleWrites++
		hc.mu.Unlock()
		return ErrStaleWrite
	}

	if hc.memoryCache != nil {
		hc.memoryCache.set(campaignID, result, hc.config.DefaultTTL)
	}

	if hc.redisCache != nil {
		if err := hc.redisCache.set(ctx, campaignID, result, hc.config.DefaultTTL); err != nil {
			hc.recordError()
			return fmt.Errorf("cache store error: %w", err)
		}
	}

	return nil
}

// Invalidate drops the entry for campaignID from both tiers.
func (hc *HybridCache) Invalidate(ctx context.Context, campaignID string) error {
	hc.genMu.Lock()
	defer hc.genMu.Unlock()

	hc.generations[campaignID]++
	hc.mu.Lock()
	hc.stats.Invalidations++
	hc.mu.Unlock()

	if hc.memoryCache != nil {
		hc.memoryCache.delete(campaignID)
	}

	if hc.redisCache != nil {
		if err := hc.redisCache.delete(ctx, campaignID); err != nil {
			hc.recordError()
			return fmt.Errorf("cache invalidation error: %w", err)
		}
	}

	return nil
}

// InvalidateAll clears all caches
func (hc *HybridCache) InvalidateAll(ctx context.Context) error {
	hc.genMu.Lock()
	defer hc.genMu.Unlock()

	hc.epoch++

	if hc.memoryCache != nil {
		hc.memoryCache.clear()
	}

	if hc.redisCache != nil {
		if err := hc.redisCache.clear(ctx); err != nil {
			return fmt.Errorf("cache invalidation errors: %w", err)
		}
	}

	return nil
}

// GetStats returns cache statistics
func (hc *HybridCache) GetStats() CacheStats {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	stats := hc.stats
	if stats.TotalOps > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(stats.TotalOps)
	}
	return stats
}

// Size returns the number of proofs held in memory.
func (hc *HybridCache) Size() int {
	if hc.memoryCache == nil {
		return 0
	}
	return hc.memoryCache.size()
}

// HealthCheck pings Redis when it is enabled.
func (hc *HybridCache) HealthCheck(ctx context.Context) error {
	if hc.redisCache == nil {
		return nil
	}
	return hc.redisCache.healthCheck(ctx)
}

// Close stops the memory cleanup goroutine and closes the Redis client.
func (hc *HybridCache) Close() error {
	if hc.memoryCache != nil {
		hc.memoryCache.close()
	}
	if hc.redisCache != nil {
		return hc.redisCache.close()
	}
	return nil
}

// Helper methods for statistics
func (hc *HybridCache) recordHit() {
	hc.mu.Lock()
	hc.stats.Hits++
	hc.stats.TotalOps++
	hc.stats.LastUpdated = time.Now()
	hc.mu.Unlock()
}

func (hc *HybridCache) recordMiss() {
	hc.mu.Lock()
	hc.stats.Misses++
	hc.stats.TotalOps++
	hc.stats.LastUpdated = time.Now()
	hc.mu.Unlock()
}

func (hc *HybridCache) recordError() {
	hc.mu.Lock()
	hc.stats.Errors++
	hc.mu.Unlock()
}

// Custom errors
var (
	ErrCacheMiss  = errors.New("cache miss")
	ErrStaleWrite = errors.New("cache entry invalidated during generation")
)
