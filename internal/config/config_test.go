package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigs_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	LoadConfigs()

	cfg := AppConfigInstance
	assert.Equal(t, 8080, cfg.GeneralConfig.Port)
	assert.Equal(t, time.Hour, cfg.StorageConfig.PreviewURLTTL)
	assert.Equal(t, 24*time.Hour, cfg.StorageConfig.DownloadURLTTL)
	assert.Equal(t, int64(5*1024*1024), cfg.UploadConfig.MaxFileSize)
	assert.Equal(t, 3, cfg.UploadConfig.MaxHeroImages)
	assert.Equal(t, 60*time.Second, cfg.SchedulerConfig.Interval)
	assert.False(t, cfg.SchedulerConfig.LockEnabled)
	assert.Equal(t, "gpt-4o", cfg.AIConfig.TextModel)
	assert.True(t, cfg.AIConfig.UseHistory)
}

func TestLoadConfigs_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
general:
  port: 9000
  log_level: debug
storage:
  bucket: from-file
scheduler:
  interval: 5s
cors:
  allowed_origins: ["https://app.example.com"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("S3_BUCKET_NAME", "from-env")
	t.Setenv("SCHEDULER_LOCK_ENABLED", "true")

	LoadConfigs()

	cfg := AppConfigInstance
	assert.Equal(t, 9000, cfg.GeneralConfig.Port)
	assert.Equal(t, "debug", cfg.GeneralConfig.LogLevel)
	assert.Equal(t, "from-env", cfg.StorageConfig.Bucket, "env overrides file")
	assert.Equal(t, 5*time.Second, cfg.SchedulerConfig.Interval)
	assert.True(t, cfg.SchedulerConfig.LockEnabled)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CorsConfig.AllowedOrigins)
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"go duration", "90s", 90 * time.Second},
		{"bare seconds", "3600", time.Hour},
		{"garbage falls back", "soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.expected, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestGetCacheConfig(t *testing.T) {
	t.Setenv("PROOF_CACHE_TTL", "")
	t.Setenv("CACHE_ENABLE_REDIS", "")

	cfg := GetCacheConfig()
	assert.Equal(t, time.Duration(0), cfg.DefaultTTL)
	assert.True(t, cfg.EnableMemory)
	assert.False(t, cfg.EnableRedis)

	t.Setenv("PROOF_CACHE_TTL", "10m")
	assert.Equal(t, 10*time.Minute, GetCacheConfig().DefaultTTL)
}

func TestGetCacheHealth(t *testing.T) {
	cfg := cache.CacheConfig{MemoryCacheSize: 5, EnableMemory: true, RedisAddr: "localhost:6379"}
	hc, err := cache.NewHybridCache(cfg)
	require.NoError(t, err)
	defer hc.Close()

	health := GetCacheHealth(context.Background(), cfg, hc)

	assert.True(t, health.Memory.Enabled)
	assert.Equal(t, 5, health.Memory.MaxSize)
	assert.Equal(t, 0, health.Memory.Entries)
	assert.False(t, health.Redis.Enabled)
	assert.False(t, health.Redis.Connected)
	assert.Equal(t, "localhost:6379", health.Redis.Address)
}
