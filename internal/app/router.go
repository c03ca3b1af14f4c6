package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"rental/internal/handler"
	"rental/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler    *handler.BookingHandler
	PaymentHandler    *handler.PaymentHandler
	WebhookHandler    *handler.WebhookHandler
	CommissionHandler *handler.CommissionHandler
	RedisClient       *redis.Client
	NewRelicApp       *newrelic.Application
	AllowedOrigins    []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.TransactionAttributes())
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")

	// Webhooks are deduplicated by payment state, not by Idempotency-Key.
	v1.POST("/webhooks/gateway", deps.WebhookHandler.Receive)

	api := v1.Group("")
	api.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		// Booking routes.
		bookings := api.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("/quote", deps.BookingHandler.Quote)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/checkout", deps.PaymentHandler.Checkout)
			bookings.GET("/:id/payment-status", deps.PaymentHandler.GetPaymentStatus)
			bookings.POST("/:id/confirm", deps.BookingHandler.ConfirmBooking)
			bookings.POST("/:id/activate", deps.BookingHandler.ActivateBooking)
			bookings.POST("/:id/complete", deps.BookingHandler.CompleteBooking)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
			bookings.POST("/:id/cash-received", deps.BookingHandler.CashReceived)
			bookings.POST("/:id/commission", deps.BookingHandler.CreateCommission)
			bookings.POST("/:id/finalize", deps.BookingHandler.FinalizePaid)
			bookings.GET("/:id/receipt", deps.BookingHandler.GetReceipt)
		}

		// Payment routes.
		api.GET("/payments/return", deps.PaymentHandler.Return)

		// Commission routes.
		commissions := api.Group("/commissions")
		{
			commissions.POST("/:id/submit", deps.CommissionHandler.Submit)
			commissions.POST("/:id/mark-paid", deps.CommissionHandler.MarkPaid)
			commissions.POST("/:id/suspend", deps.CommissionHandler.Suspend)
			commissions.POST("/:id/reset", deps.CommissionHandler.Reset)
		}

		// Owner routes.
		owners := api.Group("/owners")
		{
			owners.GET("/:id/commissions", deps.CommissionHandler.ListByOwner)
			owners.GET("/:id/commission-summary", deps.CommissionHandler.Summary)
			owners.POST("/:id/suspend", deps.CommissionHandler.SuspendOwner)
			owners.POST("/:id/unsuspend", deps.CommissionHandler.UnsuspendOwner)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
