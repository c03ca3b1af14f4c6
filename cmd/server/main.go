package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"rental/internal/app"
	"rental/internal/config"
	"rental/internal/events"
	"rental/internal/gateway"
	"rental/internal/handler"
	internalRedis "rental/internal/redis"
	"rental/internal/repository"
	"rental/internal/repository/postgres"
	"rental/internal/service"
	"rental/migrations"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	if cfg.Gateway.SecretKey == "" {
		log.Fatal("GATEWAY_SECRET_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := app.Migrate(ctx, db, migrations.FS); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Settlement events.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Printf("Publishing settlement events to kafka topic %s", cfg.Kafka.Topic)
	}

	// Wire dependencies.
	w := wireServer(db, redisClient, publisher, nrApp, cfg)

	// Start the stale payment reconciler.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		if cfg.Reconciler.Enabled {
			w.reconciler.Start(workerCtx)
		}
	}()

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := w.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	stopWorkers()
	<-reconcilerDone

	// In-flight notifications publish before the writer closes.
	w.notifier.Wait()
	if err := publisher.Close(); err != nil {
		log.Printf("failed to close event publisher: %v", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

type wired struct {
	server     *http.Server
	reconciler *service.Reconciler
	notifier   *service.NotificationService
}

// wireServer wires all dependencies and returns the HTTP server and the
// background components main controls.
func wireServer(db *sql.DB, redisClient *redis.Client, publisher events.Publisher, nrApp *newrelic.Application, cfg *config.Config) wired {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	repos := repository.Repositories{
		Bookings:    postgres.NewBookingRepository(db),
		Payments:    postgres.NewPaymentRepository(db),
		Commissions: postgres.NewCommissionRepository(db),
		Owners:      postgres.NewOwnerRepository(db),
	}
	vehicleRepo := postgres.NewVehicleRepository(db)
	txManager := postgres.NewTxManager(db)

	// Payment gateway. The secret key goes only to the client and the verifier.
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		SecretKey:    cfg.Gateway.SecretKey,
		APIVersion:   cfg.Gateway.APIVersion,
		Timeout:      cfg.Gateway.Timeout,
		RetryBackoff: cfg.Gateway.RetryBackoff,
	})
	verifier := gateway.NewWebhookVerifier(cfg.Gateway.SecretKey, cfg.Gateway.WebhookTolerance)

	// Initialize services.
	notificationService := service.NewNotificationService(publisher)
	rates := service.OwnerRateResolver{Default: cfg.Commission.DefaultRate}
	commissionService := service.NewCommissionService(repos, txManager, rates, notificationService)
	bookingService := service.NewBookingService(repos, txManager, vehicleRepo, commissionService, notificationService)
	paymentService := service.NewPaymentService(repos, txManager, gatewayClient, verifier, notificationService, cacheStore, service.PaymentConfig{
		Currency:      cfg.Gateway.Currency,
		ReturnBaseURL: cfg.Gateway.ReturnBaseURL,
		QRExpiry:      cfg.Gateway.QRExpiry,
	})
	ownerService := service.NewOwnerService(repos.Owners)
	receiptService := service.NewReceiptService(repos.Bookings, repos.Payments)
	reconciler := service.NewReconciler(repos.Payments, paymentService, lockStore, service.ReconcilerConfig{
		Interval:   cfg.Reconciler.Interval,
		StaleAfter: cfg.Reconciler.StaleAfter,
		BatchSize:  cfg.Reconciler.BatchSize,
		Workers:    cfg.Reconciler.Workers,
		LockTTL:    cfg.Reconciler.LockTTL,
	})

	// Initialize handlers.
	bookingHandler := handler.NewBookingHandler(bookingService, paymentService, commissionService, receiptService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	webhookHandler := handler.NewWebhookHandler(paymentService)
	commissionHandler := handler.NewCommissionHandler(commissionService, ownerService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		BookingHandler:    bookingHandler,
		PaymentHandler:    paymentHandler,
		WebhookHandler:    webhookHandler,
		CommissionHandler: commissionHandler,
		RedisClient:       redisClient,
		NewRelicApp:       nrApp,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	})

	// Create HTTP server.
	return wired{
		server: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		reconciler: reconciler,
		notifier:   notificationService,
	}
}
