// Package main is the entry point for the routing API.
// It initializes the database and cache, wires the routing engine
// and starts the HTTP server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payroute/internal/config"
	"payroute/internal/repositories"
	"payroute/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer repositories.Close()

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("✅ Successfully connected to database with connection pooling")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic pool and routing stats
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := sqlDB.Stats()
				log.Printf("DB Stats: Open=%d, Idle=%d, InUse=%d, WaitCount=%d, WaitDuration=%s",
					stats.OpenConnections, stats.Idle, stats.InUse, stats.WaitCount, stats.WaitDuration)
			}
		}
	}()

	if repositories.CacheService != nil {
		if err := repositories.CacheService.HealthCheck(ctx); err != nil {
			log.Printf("⚠️ Redis unavailable, routing configs will be read from the database: %v", err)
		}
		go repositories.CacheService.MonitorPool(ctx, 5*time.Minute)
	}
	routes.Warmup(ctx)

	app := fiber.New(fiber.Config{
		ReadTimeout:  config.GetDurationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: config.GetDurationEnv("HTTP_WRITE_TIMEOUT", 60*time.Second),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api/payments/route", limiter.New(limiter.Config{
		Max:        config.GetIntEnv("ROUTE_RATE_LIMIT", 120),
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	engine, err := routes.SetupRoutes(app, repositories.DB)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}
	defer engine.Close()

	go func() {
		<-ctx.Done()
		snap := engine.Metrics.Snapshot()
		log.Printf("Shutting down: routes=%d succeeded=%d with_fallback=%d no_eligible=%d",
			snap.Routes, snap.Succeeded, snap.WithFallback, snap.NoEligiblePSP)
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("⚠️ Server shutdown: %v", err)
		}
	}()

	if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
		log.Printf("🚨 Server stopped: %v", err)
	}
}
