package database

import (
	"context"
	"fmt"
	"time"

	"seatwatch/internal/shared/config"
	"seatwatch/pkg/cache"
	applog "seatwatch/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the storage handles. Store is always set; Redis and PostgreSQL
// are nil when not configured or unreachable.
type DB struct {
	PostgreSQL *gorm.DB
	Redis      *redis.Client
	Store      cache.Store
}

// InitDB opens the key-value store and, when history is enabled, the
// PostgreSQL history database. An unreachable Redis degrades to an
// in-process store; an unreachable history database is an error.
func InitDB(ctx context.Context, cfg *config.Config, log *applog.Logger) (*DB, error) {
	db := &DB{}

	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cache.Config{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, using in-process store", "addr", cfg.Redis.Addr, "error", err)
		} else {
			log.Info("Redis connected", "addr", cfg.Redis.Addr)
			db.Redis = rdb
			db.Store = cache.NewRedisStore(rdb)
		}
	}
	if db.Store == nil {
		db.Store = cache.NewMemoryStore()
	}

	if cfg.Database.Enabled {
		pg, err := initPostgreSQL(ctx, cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := Migrate(pg); err != nil {
			db.PostgreSQL = pg
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("PostgreSQL connected, booking history enabled")
		db.PostgreSQL = pg
	}

	return db, nil
}

// initPostgreSQL initializes PostgreSQL connection with GORM
func initPostgreSQL(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	var gormLogger logger.Interface
	if cfg.IsDevelopment() {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close closes all database connections
func (db *DB) Close() error {
	var errs []error

	if db.PostgreSQL != nil {
		if sqlDB, err := db.PostgreSQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close PostgreSQL: %w", err))
			}
		}
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing databases: %v", errs)
	}
	return nil
}

// HealthCheck pings every connection that is open
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.PostgreSQL != nil {
		sqlDB, err := db.PostgreSQL.DB()
		if err != nil {
			return fmt.Errorf("PostgreSQL health check failed: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("PostgreSQL ping failed: %w", err)
		}
	}

	if db.Redis != nil {
		if err := db.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}

	return nil
}
