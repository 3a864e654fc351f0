package router

import (
	"github.com/finbooks/backend/internal/infrastructure/auth"
	"github.com/finbooks/backend/internal/interfaces/http/dto"
	"github.com/finbooks/backend/internal/interfaces/http/handler"
	"github.com/finbooks/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config holds everything the router needs to wire up the HTTP surface
type Config struct {
	Logger     *zap.Logger
	JWTService *auth.JWTService
	CORS       middleware.CORSConfig

	Health   *handler.HealthHandler
	Invoice  *handler.InvoiceHandler
	Payment  *handler.PaymentHandler
	Quote    *handler.QuoteHandler
	Customer *handler.CustomerHandler
	Webhook  *handler.WebhookHandler
}

// New builds the gin engine with all middleware and routes registered.
// Webhooks and health checks sit outside JWT auth: webhooks authenticate
// by signature, health checks serve the orchestrator.
func New(cfg Config) *gin.Engine {
	dto.RegisterValidations()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogger(cfg.Logger),
		middleware.Recovery(cfg.Logger),
		middleware.CORS(cfg.CORS),
	)

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Health)
	}

	api := engine.Group("/api/v1")

	if cfg.Webhook != nil {
		api.POST("/webhooks/stripe", cfg.Webhook.HandleStripe)
	}

	protected := api.Group("")
	if cfg.JWTService != nil {
		protected.Use(middleware.JWTAuthMiddleware(cfg.JWTService))
	}

	if cfg.Invoice != nil {
		invoices := protected.Group("/invoices")
		invoices.POST("", cfg.Invoice.Create)
		invoices.GET("", cfg.Invoice.List)
		invoices.GET("/:id", cfg.Invoice.Get)
		invoices.GET("/:id/history", cfg.Invoice.GetHistory)
		invoices.PUT("/:id", cfg.Invoice.Update)
		invoices.DELETE("/:id", cfg.Invoice.Delete)
		invoices.POST("/:id/send", cfg.Invoice.Send)
		invoices.POST("/:id/view", cfg.Invoice.MarkViewed)
		invoices.POST("/:id/cancel", cfg.Invoice.Cancel)
		if cfg.Payment != nil {
			invoices.GET("/:id/payments", cfg.Payment.ListByInvoice)
		}
	}

	if cfg.Payment != nil {
		payments := protected.Group("/payments")
		payments.POST("", cfg.Payment.RecordManual)
		payments.POST("/gateway", cfg.Payment.InitiateGateway)
		payments.GET("/:id", cfg.Payment.Get)
		payments.POST("/:id/refund", cfg.Payment.Refund)
		payments.GET("/:id/refunds", cfg.Payment.ListRefunds)
	}

	if cfg.Quote != nil {
		quotes := protected.Group("/quotes")
		quotes.POST("", cfg.Quote.Create)
		quotes.GET("", cfg.Quote.List)
		quotes.GET("/:id", cfg.Quote.Get)
		quotes.POST("/:id/send", cfg.Quote.Send)
		quotes.POST("/:id/accept", cfg.Quote.Accept)
		quotes.POST("/:id/reject", cfg.Quote.Reject)
		quotes.POST("/:id/convert", cfg.Quote.Convert)
	}

	if cfg.Customer != nil {
		customers := protected.Group("/customers")
		customers.POST("", cfg.Customer.Create)
		customers.GET("", cfg.Customer.List)
		customers.GET("/:id", cfg.Customer.Get)
		customers.PUT("/:id", cfg.Customer.Update)
		customers.DELETE("/:id", cfg.Customer.Deactivate)
	}

	return engine
}
