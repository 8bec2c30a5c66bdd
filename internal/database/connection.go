package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	_ "github.com/lib/pq"
	"github.com/prajwalbharadwajbm/mailproof/internal/config"
)

// DB holds the database connection
type DB struct {
	*sql.DB
}

// NewConnection opens a pooled lib/pq connection and pings it.
func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN(cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// HealthCheck pings the database with a short timeout.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// GetConnectionStats returns database connection statistics
func (db *DB) GetConnectionStats() sql.DBStats {
	return db.Stats()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Initialize creates the database if needed, connects, applies migrations and returns
// a cleanup function that closes the pool.
func Initialize(ctx context.Context, cfg config.DatabaseConfig, logger kitlog.Logger) (*DB, func(), error) {
	if err := EnsureDatabase(ctx, cfg, logger); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure database exists: %w", err)
	}

	db, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrationManager := NewMigrationManager(cfg, logger)
	if err := migrationManager.Up(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			level.Error(logger).Log("msg", "error closing database connection", "err", err)
		}
	}

	if err := db.HealthCheck(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("database health check failed: %w", err)
	}

	return db, cleanup, nil
}
