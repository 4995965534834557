package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-svc/cache"
	"fulfillment-svc/database"
	"fulfillment-svc/handlers"
	"fulfillment-svc/kafka"
	"fulfillment-svc/middleware"
	"fulfillment-svc/notifier"
	"fulfillment-svc/sweeps"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	shutdown, err := middleware.InitTracing("fulfillment-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	rdb, err := cache.InitRedis(logger)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		rdb = nil
	}

	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	events := notifier.New(producer, logger)

	webhookHandler := handlers.NewWebhookHandler(db, rdb, events, logger)
	couponHandler := handlers.NewCouponHandler(db, logger)
	orderHandler := handlers.NewOrderHandler(db, events, logger)
	cartHandler := handlers.NewCartHandler(db, logger)
	productHandler := handlers.NewProductHandler(db, rdb, logger)
	authHandler := handlers.NewAuthHandler(db, logger)
	sweepHandler := handlers.NewSweepHandler(
		sweeps.NewCartSweeper(db, events, logger),
		sweeps.NewInventorySweeper(db, events, logger),
		logger,
	)

	limiter := middleware.NewRateLimiter()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("fulfillment-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	router.POST("/webhooks/payment", middleware.RateLimit(limiter, middleware.APILimit), webhookHandler.HandlePayment)
	router.POST("/coupons/validate", middleware.RateLimit(limiter, middleware.AuthLimit), couponHandler.Validate)
	router.POST("/auth/login", middleware.RateLimit(limiter, middleware.AuthLimit), authHandler.Login)
	router.PUT("/carts/:sessionId", middleware.RateLimit(limiter, middleware.PublicLimit), cartHandler.UpsertCart)
	router.GET("/products/:id", middleware.RateLimit(limiter, middleware.PublicLimit), productHandler.GetProduct)

	admin := router.Group("/admin")
	admin.Use(middleware.RateLimit(limiter, middleware.AdminLimit), middleware.AdminAuth())
	{
		admin.GET("/orders/:id", orderHandler.GetOrder)
		admin.PUT("/orders/:id", orderHandler.UpdateOrder)
	}

	internal := router.Group("/internal")
	internal.Use(middleware.SweepAuth())
	{
		internal.POST("/sweeps/abandoned-carts", sweepHandler.RunAbandonedCarts)
		internal.POST("/sweeps/inventory", sweepHandler.RunInventory)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.Info("Fulfillment service starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
