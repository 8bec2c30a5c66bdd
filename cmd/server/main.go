package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis/v8"
	"github.com/prajwalbharadwajbm/mailproof/internal/ai"
	"github.com/prajwalbharadwajbm/mailproof/internal/cache"
	"github.com/prajwalbharadwajbm/mailproof/internal/config"
	"github.com/prajwalbharadwajbm/mailproof/internal/database"
	"github.com/prajwalbharadwajbm/mailproof/internal/logger"
	"github.com/prajwalbharadwajbm/mailproof/internal/metrics"
	"github.com/prajwalbharadwajbm/mailproof/internal/middleware"
	"github.com/prajwalbharadwajbm/mailproof/internal/proof"
	"github.com/prajwalbharadwajbm/mailproof/internal/render"
	"github.com/prajwalbharadwajbm/mailproof/internal/repository"
	"github.com/prajwalbharadwajbm/mailproof/internal/scheduler"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
	"github.com/prajwalbharadwajbm/mailproof/internal/storage"
	"github.com/prajwalbharadwajbm/mailproof/internal/transport"
)

const serviceName = "mailproof"

func init() {
	config.LoadConfigs()
}

func main() {
	cfg := config.AppConfigInstance
	log := logger.New(logger.Config{
		Service: serviceName,
		Version: cfg.GeneralConfig.Version,
		Level:   cfg.GeneralConfig.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		level.Error(log).Log("msg", "server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log kitlog.Logger) error {
	cfg := config.AppConfigInstance
	m := metrics.NewPrometheusMetrics()
	probes := healthProbes{
		checks:  map[string]transport.HealthCheck{},
		details: map[string]transport.HealthDetail{},
	}

	repo, closeRepo, err := newRepository(ctx, log, m, probes.checks)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, err := newStore(ctx, probes.checks)
	if err != nil {
		return err
	}

	cacheConfig := config.GetCacheConfig()
	proofCache, err := cache.NewHybridCache(cacheConfig)
	if err != nil {
		return fmt.Errorf("failed to create proof cache: %w", err)
	}
	defer proofCache.Close()
	probes.checks["cache"] = proofCache.HealthCheck
	probes.details["proof_cache"] = func(ctx context.Context) interface{} {
		return config.GetCacheHealth(ctx, cacheConfig, proofCache)
	}

	renderer, err := render.NewLiquidRenderer()
	if err != nil {
		return fmt.Errorf("failed to load email template: %w", err)
	}

	generator := ai.New(ai.Config{
		APIKey:      cfg.AIConfig.APIKey,
		BaseURL:     cfg.AIConfig.BaseURL,
		TextModel:   cfg.AIConfig.TextModel,
		VisionModel: cfg.AIConfig.VisionModel,
		Temperature: cfg.AIConfig.Temperature,
		MaxTokens:   cfg.AIConfig.MaxTokens,
		Timeout:     cfg.AIConfig.Timeout,
	}, log)

	proofs := proof.NewGenerator(store, proofCache, renderer, proof.Config{
		PreviewURLTTL:  cfg.StorageConfig.PreviewURLTTL,
		DownloadURLTTL: cfg.StorageConfig.DownloadURLTTL,
	}, log, proof.WithObserver(m))

	var svc service.CampaignService = service.NewService(repo, store, generator, proofs, proofCache, service.Config{
		MaxFileSize:   cfg.UploadConfig.MaxFileSize,
		MaxHeroImages: cfg.UploadConfig.MaxHeroImages,
		UseHistory:    cfg.AIConfig.UseHistory,
	}, log, service.WithTransitionRecorder(m))
	svc = middleware.NewServiceMetricsMiddleware(m)(svc)
	svc = middleware.NewLoggingMiddleware(log)(svc)

	if cfg.SchedulerConfig.Enabled {
		sched, closeLease := newScheduler(svc, cacheConfig, log, m)
		defer closeLease()
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				level.Warn(log).Log("msg", "scheduler did not stop in time", "err", err)
			}
		}()
	}

	maxRequestBytes := cfg.UploadConfig.MaxFileSize*int64(cfg.UploadConfig.MaxHeroImages+1) + 1<<20
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GeneralConfig.Port),
		Handler:      Routes(svc, m, probes, maxRequestBytes, log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		level.Info(log).Log("msg", "starting server", "port", cfg.GeneralConfig.Port, "env", cfg.GeneralConfig.Env)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	level.Info(log).Log("msg", "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newRepository selects the campaign store from STORE_BACKEND.
func newRepository(ctx context.Context, log kitlog.Logger, m *metrics.Metrics, checks map[string]transport.HealthCheck) (service.CampaignRepository, func(), error) {
	switch backend := config.AppConfigInstance.GeneralConfig.StoreBackend; backend {
	case "memory":
		level.Warn(log).Log("msg", "using in-memory campaign store, data is lost on restart")
		return repository.NewInstrumentedRepository(repository.NewMemoryRepository(), m), func() {}, nil
	case "postgres", "":
		db, cleanup, err := database.Initialize(ctx, config.AppConfigInstance.DatabaseConfig, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		checks["database"] = db.HealthCheck
		return repository.NewInstrumentedRepository(repository.NewPostgresRepository(db.DB), m), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

// newStore selects the artifact store from STORAGE_BACKEND.
func newStore(ctx context.Context, checks map[string]transport.HealthCheck) (storage.Store, error) {
	c := config.AppConfigInstance.StorageConfig
	switch c.Backend {
	case "memory":
		return storage.NewMemoryStore(c.Bucket), nil
	case "s3", "":
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          c.Bucket,
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			UsePathStyle:    c.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 store: %w", err)
		}
		checks["storage"] = s3Store.HealthCheck
		return s3Store, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Backend)
	}
}

// newScheduler builds the send loop. With SCHEDULER_LOCK_ENABLED only the instance
// holding the Redis lease fires due campaigns on a given tick.
func newScheduler(svc service.CampaignService, cacheConfig cache.CacheConfig, log kitlog.Logger, m *metrics.Metrics) (*scheduler.Scheduler, func()) {
	c := config.AppConfigInstance.SchedulerConfig
	opts := []scheduler.Option{scheduler.WithObserver(m)}
	closeLease := func() {}

	if c.LockEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cacheConfig.RedisAddr,
			Password: cacheConfig.RedisPassword,
			DB:       cacheConfig.RedisDB,
		})
		opts = append(opts, scheduler.WithLease(scheduler.NewRedisLease(client, scheduler.DefaultLeaseKey, c.LockTTL)))
		closeLease = func() {
			if err := client.Close(); err != nil {
				level.Warn(log).Log("msg", "error closing scheduler lease client", "err", err)
			}
		}
	}

	return scheduler.New(svc, c.Interval, log, opts...), closeLease
}
