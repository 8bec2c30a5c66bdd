package cache

import (
	"sync"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

// cacheItem represents a cached proof with an optional expiration
type cacheItem struct {
	data      *models.ProofResult
	storedAt  time.Time
	expiresAt time.Time
}

// isExpired checks if the cache item has expired. A zero expiresAt never expires.
func (ci *cacheItem) isExpired() bool {
	return !ci.expiresAt.IsZero() && time.Now().After(ci.expiresAt)
}

// memoryCache implements in-memory caching with optional TTL
type memoryCache struct {
	items    map[string]*cacheItem
	mu       sync.RWMutex
	maxSize  int
	stopChan chan struct{}
	stopOnce sync.Once
}

// newMemoryCache creates a new in-memory cache
func newMemoryCache(maxSize int) *memoryCache {
	mc := &memoryCache{
		items:    make(map[string]*cacheItem),
		maxSize:  maxSize,
		stopChan: make(chan struct{}),
	}

	go mc.cleanup()

	return mc
}

func (mc *memoryCache) get(key string) (*models.ProofResult, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	item, exists := mc.items[key]
	if !exists || item.isExpired() {
		return nil, false
	}
	return item.data, true
}

func (mc *memoryCache) set(key string, result *models.ProofResult, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	item := &cacheItem{data: result, storedAt: now}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}
	mc.items[key] = item

	mc.evictIfNeeded()
}

func (mc *memoryCache) delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.items, key)
}

// clear removes all items from memory cache
func (mc *memoryCache) clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items = make(map[string]*cacheItem)
}

// evictIfNeeded removes expired items, then the oldest entries until under maxSize
func (mc *memoryCache) evictIfNeeded() {
	for key, item := range mc.items {
		if item.isExpired() {
			delete(mc.items, key)
		}
	}

	if mc.maxSize <= 0 {
		return
	}
	for len(mc.items) > mc.maxSize {
		var oldestKey string
		var oldest time.Time
		for key, item := range mc.items {
			if oldestKey == "" || item.storedAt.Before(oldest) {
				oldestKey, oldest = key, item.storedAt
			}
		}
		delete(mc.items, oldestKey)
	}
}

// cleanup periodically removes expired items
func (mc *memoryCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			for key, item := range mc.items {
				if item.isExpired() {
					delete(mc.items, key)
				}
			}
			mc.mu.Unlock()
		case <-mc.stopChan:
			return
		}
	}
}

// close stops the cleanup goroutine
func (mc *memoryCache) close() {
	mc.stopOnce.Do(func() { close(mc.stopChan) })
}

// size returns the current number of items in cache
func (mc *memoryCache) size() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.items)
}
