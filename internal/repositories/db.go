// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"log"
	"os"
	"time"

	"payroute/internal/config"
	"payroute/internal/models"
	"payroute/internal/repositories/cache"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance used across the application.
var DB *gorm.DB
var CacheService *cache.CacheService

// DBConfig holds database connection pool configuration
type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func loadDBConfig() DBConfig {
	return DBConfig{
		MaxIdleConns:    config.GetIntEnv("DB_MAX_IDLE_CONNS", 10),
		MaxOpenConns:    config.GetIntEnv("DB_MAX_OPEN_CONNS", 100),
		ConnMaxLifetime: config.GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime: config.GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
	}
}

// InitDB initializes the database connection.
// It sets up the connection pool, performs migrations,
// and configures the Redis cache used for routing snapshots.
func InitDB() error {
	if err := initPostgres(); err != nil {
		return err
	}

	if config.GetBoolEnv("REDIS_ENABLED", true) {
		redisCfg := &cache.RedisConfig{
			Host:         config.GetEnv("REDIS_HOST", "localhost"),
			Port:         config.GetEnv("REDIS_PORT", "6379"),
			Password:     config.GetEnv("REDIS_PASSWORD", ""),
			DB:           config.GetIntEnv("REDIS_DB", 0),
			PoolSize:     config.GetIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: config.GetIntEnv("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  config.GetDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  config.GetDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: config.GetDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
		}
		log.Printf("Connecting to Redis at %s:%s (DB %d)", redisCfg.Host, redisCfg.Port, redisCfg.DB)
		redisClient := cache.NewRedisClient(redisCfg)
		CacheService = cache.NewCacheService(redisClient, config.GetDurationEnv("ROUTING_CACHE_TTL", 5*time.Minute))
	}

	if err := AutoMigrate(DB); err != nil {
		return err
	}

	log.Println("✅ PostgreSQL connected & migrations applied successfully!")
	return nil
}

// AutoMigrate creates or updates every table the routing engine owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PSP{},
		&models.StorePSP{},
		&models.RoutingConfig{},
		&models.PSPWeight{},
		&models.FallbackSequence{},
		&models.Payment{},
	)
}

func initPostgres() error {
	dsn := "host=" + config.GetEnv("DB_HOST", "localhost") +
		" user=" + config.GetEnv("DB_USER", "postgres") +
		" password=" + config.GetEnv("DB_PASSWORD", "postgres") +
		" dbname=" + config.GetEnv("DB_NAME", "payroute") +
		" port=" + config.GetEnv("DB_PORT", "5432") +
		" sslmode=" + config.GetEnv("DB_SSLMODE", "disable")

	// Configure GORM logger to ignore "record not found" errors
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  !config.IsProduction(),
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newLogger})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	poolCfg := loadDBConfig()
	sqlDB.SetMaxIdleConns(poolCfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolCfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(poolCfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(poolCfg.ConnMaxIdleTime)

	DB = db
	return nil
}

// Close releases the database pool and the Redis client.
func Close() {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			log.Printf("⚠️ Failed to get database instance: %v", err)
		} else if err := sqlDB.Close(); err != nil {
			log.Printf("⚠️ Failed to close database connection: %v", err)
		}
	}

	if CacheService != nil {
		if err := CacheService.Close(); err != nil {
			log.Printf("⚠️ Failed to close Redis connection: %v", err)
		}
	}
}
