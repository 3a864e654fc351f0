package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	billingapp "github.com/finbooks/backend/internal/application/billing"
	partnerapp "github.com/finbooks/backend/internal/application/partner"
	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/infrastructure/audit"
	"github.com/finbooks/backend/internal/infrastructure/auth"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/finbooks/backend/internal/infrastructure/config"
	"github.com/finbooks/backend/internal/infrastructure/event"
	"github.com/finbooks/backend/internal/infrastructure/gateway"
	"github.com/finbooks/backend/internal/infrastructure/logger"
	"github.com/finbooks/backend/internal/infrastructure/migration"
	"github.com/finbooks/backend/internal/infrastructure/persistence"
	"github.com/finbooks/backend/internal/interfaces/http/handler"
	"github.com/finbooks/backend/internal/interfaces/http/middleware"
	"github.com/finbooks/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting FinBooks backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLogLevel := gormlogger.Silent
	if cfg.App.Env != "production" {
		gormLogLevel = gormlogger.Warn
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if sqlDB, err := db.DB.DB(); err == nil {
		migrator, err := migration.New(sqlDB, "migrations", log)
		if err != nil {
			log.Fatal("Failed to initialize migrator", zap.Error(err))
		}
		if err := migrator.Up(); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	} else {
		log.Fatal("Failed to get sql.DB for migrations", zap.Error(err))
	}

	// Repositories and unit of work
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	refundRepo := persistence.NewGormRefundRepository(db.DB)
	quoteRepo := persistence.NewGormQuoteRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	uow := persistence.NewGormUnitOfWork(db.DB)

	// Idempotency store: Redis when enabled, in-memory otherwise
	var idempotencyStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		idempotencyStore = redisStore
		log.Info("Redis idempotency store initialized")
	} else {
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
		log.Info("In-memory idempotency store initialized")
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Payment gateway
	var paymentGateway billing.PaymentGateway
	var webhookVerifier handler.WebhookVerifier
	if cfg.Stripe.SecretKey != "" {
		stripeGateway := gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, log)
		paymentGateway = stripeGateway
		webhookVerifier = stripeGateway
		log.Info("Stripe gateway initialized")
	} else {
		log.Warn("No Stripe credentials configured, gateway payments disabled")
	}

	eventPublisher := event.NewLoggingPublisher(log)
	auditSink := audit.NewGormAuditSink(db.DB, log)

	// Application services
	invoiceService := billingapp.NewInvoiceService(invoiceRepo, quoteRepo, customerRepo, uow, log)
	invoiceService.SetEventPublisher(eventPublisher)
	invoiceService.SetAuditSink(auditSink)

	paymentService := billingapp.NewPaymentService(billingapp.PaymentServiceConfig{
		PaymentRepo:      paymentRepo,
		RefundRepo:       refundRepo,
		InvoiceRepo:      invoiceRepo,
		CustomerRepo:     customerRepo,
		Gateway:          paymentGateway,
		IdempotencyStore: idempotencyStore,
		IdempotencyCfg: shared.IdempotencyConfig{
			Enabled: cfg.Idempotency.Enabled,
			TTL:     cfg.Idempotency.TTL,
		},
		UnitOfWork: uow,
		Logger:     log,
	})
	paymentService.SetEventPublisher(eventPublisher)
	paymentService.SetAuditSink(auditSink)

	quoteService := billingapp.NewQuoteService(quoteRepo, customerRepo, log)
	customerService := partnerapp.NewCustomerService(customerRepo)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	quoteHandler := handler.NewQuoteHandler(quoteService, invoiceService)
	customerHandler := handler.NewCustomerHandler(customerService)
	if cfg.App.Env != "production" {
		// Lets local clients pick a tenant via X-Tenant-ID without a token
		invoiceHandler.DevTenantFallback = true
		paymentHandler.DevTenantFallback = true
		quoteHandler.DevTenantFallback = true
		customerHandler.DevTenantFallback = true
	}

	engine := router.New(router.Config{
		Logger:     log,
		JWTService: jwtService,
		CORS:       middleware.DefaultCORSConfig(),
		Health:     handler.NewHealthHandler(db, version),
		Invoice:    invoiceHandler,
		Payment:    paymentHandler,
		Quote:      quoteHandler,
		Customer:   customerHandler,
		Webhook:    handler.NewWebhookHandler(webhookVerifier, paymentService, log),
	})

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
