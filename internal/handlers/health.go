package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

// CacheHealth is implemented by the routing config cache.
type CacheHealth interface {
	HealthCheck(ctx context.Context) error
	GetStats(ctx context.Context) *redis.PoolStats
}

type HealthHandler struct {
	db    *gorm.DB
	cache CacheHealth
}

// NewHealthHandler builds the handler; cache may be nil when Redis is off.
func NewHealthHandler(db *gorm.DB, cache CacheHealth) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	status := fiber.StatusOK
	database := "connected"
	if err := h.pingDB(ctx); err != nil {
		database = "unreachable"
		status = fiber.StatusServiceUnavailable
	}

	// Redis only holds a read-through cache, so losing it degrades
	// but does not fail the service.
	cacheState := "disabled"
	if h.cache != nil {
		cacheState = "connected"
		if err := h.cache.HealthCheck(ctx); err != nil {
			cacheState = "unreachable"
		}
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  state,
		"version": "1.0.0",
		"services": fiber.Map{
			"database": database,
			"redis":    cacheState,
		},
	})
}

func (h *HealthHandler) CacheStats(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache disabled"})
	}

	poolStats := h.cache.GetStats(c.UserContext())
	return c.JSON(fiber.Map{
		"pool_stats": fiber.Map{
			"hits":        poolStats.Hits,
			"misses":      poolStats.Misses,
			"timeouts":    poolStats.Timeouts,
			"total_conns": poolStats.TotalConns,
			"idle_conns":  poolStats.IdleConns,
			"stale_conns": poolStats.StaleConns,
		},
	})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
