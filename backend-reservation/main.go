package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/di"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/gateway"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/metrics"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/service"
	"github.com/prohmpiriya/seat-rush/pkg/config"
	"github.com/prohmpiriya/seat-rush/pkg/database"
	"github.com/prohmpiriya/seat-rush/pkg/logger"
	"github.com/prohmpiriya/seat-rush/pkg/middleware"
	pkgredis "github.com/prohmpiriya/seat-rush/pkg/redis"
	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.uber.org/zap"
)

const serviceName = "reservation-service"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	level := "info"
	if cfg.App.Debug {
		level = "debug"
	}
	if err := logger.Init(&logger.Config{
		Level:       level,
		ServiceName: serviceName,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Reservation Service...", zap.String("version", cfg.App.Version))

	ctx := context.Background()

	// Initialize tracing; disabled config installs a no-op tracer
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("Telemetry init failed, tracing disabled", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()
	if err := metrics.Init(); err != nil {
		appLog.Warn("Failed to register metrics", zap.Error(err))
	}

	// Initialize database connection
	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))

	// Initialize Redis connection
	redisCfg := &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		PoolTimeout:   4 * time.Second,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	}
	redisClient, err := pkgredis.NewClient(ctx, redisCfg)
	if err != nil {
		appLog.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()
	appLog.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", redisCfg.PoolSize, redisCfg.MinIdleConns))

	// Initialize Kafka event publisher
	var eventPublisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: serviceName,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn("Kafka connection failed, using no-op publisher", zap.Error(err))
		} else {
			eventPublisher = kafkaPublisher
			appLog.Info("Kafka event publisher connected")
		}
	}
	defer eventPublisher.Close()

	// Initialize payment gateway
	paymentGateway, err := newPaymentGateway(&cfg.Payment)
	if err != nil {
		appLog.Fatal("Payment gateway init failed", zap.Error(err))
	}
	appLog.Info("Payment gateway ready", zap.String("gateway", paymentGateway.Name()))

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:                db,
		Redis:             redisClient,
		Gateway:           paymentGateway,
		EventPublisher:    eventPublisher,
		Currency:          cfg.Payment.Currency,
		MaxTicketsPerCart: cfg.Reservation.MaxTicketsPerCart,
	})

	// Pre-load Lua scripts into Redis
	if err := container.HoldRepo.LoadScripts(ctx); err != nil {
		appLog.Warn("Failed to pre-load Lua scripts", zap.Error(err))
	} else {
		appLog.Info("Lua scripts pre-loaded into Redis")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(telemetry.TracingMiddleware(serviceName))
	router.Use(middleware.AccessLog(appLog))

	// Health check endpoints
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	idempotencyConfig := middleware.DefaultIdempotencyConfig(redisClient)
	idempotent := middleware.IdempotencyMiddleware(idempotencyConfig)

	v1 := router.Group("/api/v1")
	{
		user := v1.Group("", middleware.UserID())

		cart := user.Group("/cart")
		{
			cart.GET("", container.CartHandler.GetCart)
			cart.PUT("", container.CartHandler.ReplaceCart)
			cart.DELETE("", container.CartHandler.ClearCart)
			cart.GET("/purchase-order", container.CartHandler.GetPurchaseOrder)
		}

		payments := user.Group("/payments")
		{
			payments.POST("", idempotent, container.PaymentHandler.StartPayment)
			// duplicate captures are rejected by the capture guard, not replayed
			payments.POST("/:charge_id/capture", container.PaymentHandler.CapturePayment)
			payments.DELETE("/:charge_id", container.PaymentHandler.AbortPayment)
		}

		tickets := user.Group("/tickets")
		{
			tickets.GET("/:id", container.TicketHandler.GetTicket)
			tickets.POST("/:id/transfer", idempotent, container.TicketHandler.OfferTransfer)
			tickets.DELETE("/:id/transfer", container.TicketHandler.CancelTransfer)
		}
		user.POST("/transfers/:token/receive", idempotent, container.TicketHandler.ReceiveTransfer)

		// operator identity is enforced upstream
		admin := v1.Group("/admin/tickets")
		{
			admin.POST("/:id/stop-selling", container.AdminHandler.StopSelling)
			admin.POST("/:id/resume-selling", container.AdminHandler.ResumeSelling)
			admin.POST("/:id/transfer", container.AdminHandler.AdminTransfer)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Reservation Service listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}

	appLog.Info("Server exited gracefully")
}

// newPaymentGateway picks the provider named by PAYMENT_GATEWAY
func newPaymentGateway(cfg *config.PaymentConfig) (gateway.PaymentGateway, error) {
	switch cfg.Gateway {
	case "stripe":
		return gateway.NewStripeGateway(&gateway.StripeGatewayConfig{SecretKey: cfg.StripeSecretKey})
	case "", "mock":
		return gateway.NewMockGateway(&gateway.MockGatewayConfig{SuccessRate: cfg.MockSuccessRate}), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Gateway)
	}
}
