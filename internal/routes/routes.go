// Package routes defines the API routing configuration.
// It builds the routing engine from environment configuration and mounts
// the payment, capacity and admin endpoints.
package routes

import (
	"context"
	"log"
	"time"

	"payroute/internal/config"
	"payroute/internal/handlers"
	"payroute/internal/middleware"
	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/capacity"
	"payroute/internal/services/dashboard"
	"payroute/internal/services/management"
	"payroute/internal/services/notification"
	"payroute/internal/services/providers"
	"payroute/internal/services/recorder"
	"payroute/internal/services/router"
	"payroute/internal/services/selector"
	"payroute/internal/services/vault"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Engine holds the long-lived pieces main needs to shut down.
type Engine struct {
	Metrics   *router.Counters
	Publisher notification.Publisher
}

// Close releases the event publisher.
func (e *Engine) Close() {
	if e.Publisher == nil {
		return
	}
	if err := e.Publisher.Close(); err != nil {
		log.Printf("⚠️ Failed to close event publisher: %v", err)
	}
}

// SetupRoutes wires the routing engine and mounts all application routes.
func SetupRoutes(app *fiber.App, db *gorm.DB) (*Engine, error) {
	v, err := vault.NewFromBase64(config.GetEnv("VAULT_KEY", ""))
	if err != nil {
		return nil, err
	}

	// Repositories
	pspRepo := repositories.NewPSPRepository(db)
	configRepo := repositories.NewRoutingConfigRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)

	ledger := capacity.NewLedger(paymentRepo, capacity.Config{
		Location:          config.GetLocationEnv("BUSINESS_TIMEZONE"),
		CutoverHour:       config.GetIntEnv("CAPACITY_CUTOVER_HOUR", capacity.DefaultCutoverHour),
		ExcludeProcessing: !config.GetBoolEnv("CAPACITY_COUNT_PROCESSING", true),
	})

	registry := providers.NewRegistry(providers.Config{
		Timeout:                    config.GetDurationEnv("PROVIDER_TIMEOUT", providers.DefaultTimeout),
		BreakerConsecutiveFailures: uint32(config.GetIntEnv("BREAKER_CONSECUTIVE_FAILURES", providers.DefaultBreakerConsecutiveFailures)),
		BreakerOpenTimeout:         config.GetDurationEnv("BREAKER_OPEN_TIMEOUT", providers.DefaultBreakerOpenTimeout),
		BreakerInterval:            config.GetDurationEnv("BREAKER_INTERVAL", providers.DefaultBreakerInterval),
		BreakerHalfOpenRequests:    uint32(config.GetIntEnv("BREAKER_HALF_OPEN_REQUESTS", providers.DefaultBreakerHalfOpenRequests)),
	},
		providers.NewStripeAdapter(),
		providers.NewCheckoutAdapter(config.GetEnv("CHECKOUT_BASE_URL", providers.DefaultCheckoutBaseURL), nil),
		providers.NewPayPalAdapter(config.GetEnv("PAYPAL_BASE_URL", providers.DefaultPayPalBaseURL), nil),
	)

	statsWindow := config.GetIntEnv("STATS_WINDOW", dashboard.DefaultStatsWindow)
	scorer := selector.DefaultScorer()
	scorer.ApprovalWeight = config.GetFloatEnv("SCORE_WEIGHT_APPROVAL", scorer.ApprovalWeight)
	scorer.HeadroomWeight = config.GetFloatEnv("SCORE_WEIGHT_HEADROOM", scorer.HeadroomWeight)
	scorer.LatencyWeight = config.GetFloatEnv("SCORE_WEIGHT_LATENCY", scorer.LatencyWeight)

	checker := selector.NewEligibilityChecker(ledger, v, registry)
	sel := selector.New(checker, paymentRepo, scorer, selector.Config{StatsWindow: statsWindow})

	publisher := newPublisher()
	notifier := notification.NewService(publisher,
		config.GetIntEnv("AMQP_PUBLISH_RETRIES", 3),
		config.GetDurationEnv("AMQP_PUBLISH_BACKOFF", 100*time.Millisecond))
	rec := recorder.New(paymentRepo, notifier, recorder.Config{
		MaxAttempts: config.GetIntEnv("RECORDER_MAX_ATTEMPTS", recorder.DefaultMaxAttempts),
		Backoff:     config.GetDurationEnv("RECORDER_BACKOFF", recorder.DefaultBackoff),
	})

	// A nil *CacheService must not reach the interfaces below.
	var loader router.SnapshotLoader
	var invalidator management.ConfigInvalidator
	var cacheHealth handlers.CacheHealth
	if repositories.CacheService != nil {
		loader = router.NewSnapshotLoader(configRepo, pspRepo, repositories.CacheService)
		invalidator = repositories.CacheService
		cacheHealth = repositories.CacheService
	} else {
		loader = router.NewSnapshotLoader(configRepo, pspRepo, nil)
	}

	counters := router.NewCounters()
	routerSvc := router.NewService(loader, sel, checker, registry, rec, ledger, pspRepo, router.Config{}, counters)
	managementSvc := management.NewService(pspRepo, configRepo, paymentRepo, v, invalidator)
	dashboardSvc := dashboard.NewService(pspRepo, ledger, paymentRepo, registry, statsWindow)

	// Handlers
	routingHandler := handlers.NewRoutingHandler(routerSvc)
	adminHandler := handlers.NewAdminHandler(managementSvc, dashboardSvc, counters)
	healthHandler := handlers.NewHealthHandler(db, cacheHealth)
	auth := middleware.NewAuthMiddleware(config.GetEnv("JWT_SECRET", ""))

	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/health/cache", healthHandler.CacheStats)

	api := app.Group("/api", auth.Handler)
	api.Post("/payments/route", middleware.HasPermission(models.PermissionPaymentRoute), routingHandler.RoutePayment)
	api.Get("/psps/:id/capacity", middleware.HasPermission(models.PermissionRoutingRead), routingHandler.GetRemainingCapacity)

	// Admin routes
	admin := api.Group("/admin")
	admin.Get("/psps", middleware.HasPermission(models.PermissionRoutingRead), adminHandler.ListPSPs)
	admin.Get("/psps/:id", middleware.HasPermission(models.PermissionRoutingRead), adminHandler.GetPSP)
	admin.Post("/psps", middleware.HasPermission(models.PermissionPSPWrite), adminHandler.CreatePSP)
	admin.Put("/psps/:id", middleware.HasPermission(models.PermissionPSPWrite), adminHandler.UpdatePSP)
	admin.Delete("/psps/:id", middleware.AdminOnly, adminHandler.DeletePSP)

	stores := admin.Group("/stores/:storeId")
	stores.Get("/psps", middleware.HasPermission(models.PermissionRoutingRead), adminHandler.ListStorePSPs)
	stores.Post("/psps/:pspId", middleware.HasPermission(models.PermissionRoutingWrite), adminHandler.LinkStore)
	stores.Delete("/psps/:pspId", middleware.HasPermission(models.PermissionRoutingWrite), adminHandler.UnlinkStore)
	stores.Get("/routing", middleware.HasPermission(models.PermissionRoutingRead), adminHandler.GetRoutingConfig)
	stores.Put("/routing", middleware.HasPermission(models.PermissionRoutingWrite), adminHandler.SaveRoutingConfig)

	admin.Get("/payments", middleware.HasPermission(models.PermissionPaymentRead), adminHandler.ListPayments)
	admin.Get("/orders/:orderId/attempts", middleware.HasPermission(models.PermissionPaymentRead), adminHandler.ListOrderAttempts)
	admin.Post("/attempts/:intentId/resolve", middleware.AdminOnly, adminHandler.ResolveAttempt)
	admin.Get("/metrics", middleware.HasPermission(models.PermissionRoutingRead), adminHandler.Metrics)

	return &Engine{Metrics: counters, Publisher: publisher}, nil
}

// newPublisher connects to RabbitMQ when AMQP_URL is set and falls back
// to logging events otherwise.
func newPublisher() notification.Publisher {
	url := config.GetEnv("AMQP_URL", "")
	if url == "" {
		log.Println("⚠️ AMQP_URL not set, attempt events will only be logged")
		return notification.NewLogPublisher()
	}

	pub, err := notification.NewRabbitPublisher(notification.RabbitConfig{
		URL:            url,
		Exchange:       config.GetEnv("AMQP_EXCHANGE", notification.DefaultExchange),
		PublishTimeout: config.GetDurationEnv("AMQP_PUBLISH_TIMEOUT", 5*time.Second),
	})
	if err != nil {
		log.Printf("⚠️ RabbitMQ unavailable (%v), attempt events will only be logged", err)
		return notification.NewLogPublisher()
	}
	log.Println("✅ RabbitMQ publisher connected")
	return pub
}

// Warmup drops routing configs cached by a previous process.
func Warmup(ctx context.Context) {
	if repositories.CacheService == nil {
		return
	}
	if err := repositories.CacheService.FlushRouting(ctx); err != nil {
		log.Printf("⚠️ Failed to flush routing cache: %v", err)
		return
	}
	log.Println("✅ Routing cache flushed on startup")
}
