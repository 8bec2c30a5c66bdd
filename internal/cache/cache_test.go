package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryOnlyConfig() CacheConfig {
	return CacheConfig{
		MemoryCacheSize: 100,
		EnableMemory:    true,
		EnableRedis:     false,
	}
}

func sampleProof(id string) *models.ProofResult {
	return &models.ProofResult{
		HTML:       "<html><body>" + id + "</body></html>",
		ProofS3URL: "s3://bucket/proofs/" + id + "/proof.html",
		Preview: models.PreviewPayload{
			CampaignID: id,
			AISuggestions: models.AISuggestions{
				SubjectLines: []string{"Spring sale", "Save 20%", "Last chance"},
			},
		},
		GenerationTimeMs: 12,
	}
}

func TestHybridCache_MemoryOnly(t *testing.T) {
	cache, err := NewHybridCache(memoryOnlyConfig())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	proof := sampleProof("c1")

	gen := cache.Reserve("c1")
	require.NoError(t, cache.Set(ctx, "c1", gen, proof))

	cached, err := cache.Get(ctx, "c1")
	assert.NoError(t, err)
	assert.Equal(t, proof, cached)

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, 1, cache.Size())
}

func TestHybridCache_CacheMiss(t *testing.T) {
	cache, err := NewHybridCache(memoryOnlyConfig())
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Get(context.Background(), "missing")
	assert.Equal(t, ErrCacheMiss, err)

	stats := cache.GetStats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestHybridCache_Invalidate(t *testing.T) {
	cache, err := NewHybridCache(memoryOnlyConfig())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "c1", cache.Reserve("c1"), sampleProof("c1")))
	require.NoError(t, cache.Set(ctx, "c2", cache.Reserve("c2"), sampleProof("c2")))

	require.NoError(t, cache.Invalidate(ctx, "c1"))

	_, err = cache.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = cache.Get(ctx, "c2")
	assert.NoError(t, err, "invalidating one campaign must not affect another")
	assert.Equal(t, int64(1), cache.GetStats().Invalidations)
}

func TestHybridCache_StaleWriteRejected(t *testing.T) {
	cache, err := NewHybridCache(memoryOnlyConfig())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()

	// A render starts, then the campaign is edited before it finishes
	gen := cache.Reserve("c1")
	require.NoError(t, cache.Invalidate(ctx, "c1"))

	err = cache.Set(ctx, "c1", gen, sampleProof("c1"))
	assert.ErrorIs(t, err, ErrStaleWrite)

	_, err = cache.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, int64(1), cache.GetStats().StaleWrites)
}

func TestHybridCache_InvalidateAllBumpsEveryGeneration(t *testing.T) {
	cache, err := NewHybridCache(memoryOnlyConfig())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	gen := cache.Reserve("never-seen")
	require.NoError(t, cache.Set(ctx, "c1", cache.Reserve("c1"), sampleProof("c1")))

	require.NoError(t, cache.InvalidateAll(ctx))

	_, err = cache.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, cache.Set(ctx, "never-seen", gen, sampleProof("never-seen")), ErrStaleWrite)
}

func TestHybridCache_TTLExpiration(t *testing.T) {
	config := memoryOnlyConfig()
	config.DefaultTTL = 50 * time.Millisecond

	cache, err := NewHybridCache(config)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "c1", cache.Reserve("c1"), sampleProof("c1")))

	_, err = cache.Get(ctx, "c1")
	assert.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = cache.Get(ctx, "c1")
	assert.Equal(t, ErrCacheMiss, err)
}

func TestHybridCache_NoTTLKeepsEntries(t *testing.T) {
	cache, err := NewHybridCache(memoryOnlyConfig())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "c1", cache.Reserve("c1"), sampleProof("c1")))

	time.Sleep(20 * time.Millisecond)

	_, err = cache.Get(ctx, "c1")
	assert.NoError(t, err)
}

func TestMemoryCache_EvictsOldest(t *testing.T) {
	mc := newMemoryCache(2)
	defer mc.close()

	mc.set("a", sampleProof("a"), 0)
	time.Sleep(time.Millisecond)
	mc.set("b", sampleProof("b"), 0)
	time.Sleep(time.Millisecond)
	mc.set("c", sampleProof("c"), 0)

	assert.Equal(t, 2, mc.size())
	_, found := mc.get("a")
	assert.False(t, found)
	_, found = mc.get("c")
	assert.True(t, found)
}

func TestHybridCache_ConcurrentAccess(t *testing.T) {
	cache, err := NewHybridCache(memoryOnlyConfig())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i%5)
			_ = cache.Set(ctx, id, cache.Reserve(id), sampleProof(id))
			_, _ = cache.Get(ctx, id)
			if i%3 == 0 {
				_ = cache.Invalidate(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	stats := cache.GetStats()
	assert.Equal(t, int64(20), stats.TotalOps)
}

func setupRedisCache(t *testing.T) (*HybridCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache, err := NewHybridCache(CacheConfig{
		MemoryCacheSize: 100,
		RedisAddr:       mr.Addr(),
		EnableMemory:    true,
		EnableRedis:     true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestHybridCache_RedisTier(t *testing.T) {
	cache, mr := setupRedisCache(t)
	ctx := context.Background()
	proof := sampleProof("c1")

	require.NoError(t, cache.Set(ctx, "c1", cache.Reserve("c1"), proof))
	assert.True(t, mr.Exists(redisKeyPrefix+"c1"))

	// Drop the memory tier so the read has to come from Redis
	cache.memoryCache.clear()

	cached, err := cache.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, proof.HTML, cached.HTML)
	assert.Equal(t, proof.Preview.AISuggestions.SubjectLines, cached.Preview.AISuggestions.SubjectLines)

	// Memory tier is warmed by the Redis hit
	assert.Equal(t, 1, cache.Size())
}

func TestHybridCache_RedisInvalidate(t *testing.T) {
	cache, mr := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "c1", cache.Reserve("c1"), sampleProof("c1")))
	require.NoError(t, cache.Set(ctx, "c2", cache.Reserve("c2"), sampleProof("c2")))

	require.NoError(t, cache.Invalidate(ctx, "c1"))
	assert.False(t, mr.Exists(redisKeyPrefix+"c1"))
	assert.True(t, mr.Exists(redisKeyPrefix+"c2"))

	require.NoError(t, cache.InvalidateAll(ctx))
	assert.False(t, mr.Exists(redisKeyPrefix+"c2"))
	assert.NoError(t, cache.HealthCheck(ctx))
}

func TestHybridCache_RedisUnavailable(t *testing.T) {
	_, err := NewHybridCache(CacheConfig{
		RedisAddr:   "127.0.0.1:1",
		EnableRedis: true,
	})
	assert.Error(t, err)
}
