package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/auth"
	"github.com/segyhp/lease-billing/internal/cache"
	"github.com/segyhp/lease-billing/internal/config"
	"github.com/segyhp/lease-billing/internal/handler"
	"github.com/segyhp/lease-billing/internal/ledger"
	"github.com/segyhp/lease-billing/internal/metrics"
	"github.com/segyhp/lease-billing/internal/migration"
	"github.com/segyhp/lease-billing/internal/notification"
	"github.com/segyhp/lease-billing/internal/processor"
	"github.com/segyhp/lease-billing/internal/repository"
	"github.com/segyhp/lease-billing/internal/service"
	"github.com/segyhp/lease-billing/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.IsDevelopment() {
		if err := migration.Up(db.DB); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	// Initialize Redis, falling back to in-process locking without it
	redisClient, locker, scheduleCache := initRedis(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	waivePolicy, ok := ledger.ParseWaivePolicy(cfg.Ledger.WaivePolicy)
	if !ok {
		log.Fatalf("Unknown waive policy %q", cfg.Ledger.WaivePolicy)
	}

	m := metrics.New()
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.GetTokenTTL(), cfg.GetPaymentLinkTTL())

	// Initialize repositories
	loanRepo := repository.NewLoanRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notifier := notification.NewService(notificationRepo, customerRepo, notification.NewLogPusher(log), m, log)

	// Initialize services
	authService := service.NewAuthService(adminRepo, customerRepo, issuer, log)
	adminService := service.NewAdminService(adminRepo, cfg.Auth.BcryptCost, log)
	vehicleService := service.NewVehicleService(vehicleRepo, log)
	leaseService := service.NewLeaseService(
		vehicleRepo,
		loanRepo,
		paymentRepo,
		repository.NewOnboardingStore(db),
		scheduleCache,
		m,
		cfg.Auth.BcryptCost,
		log,
	)
	paymentService := service.NewPaymentService(service.PaymentDeps{
		Loans:     loanRepo,
		Payments:  paymentRepo,
		Customers: customerRepo,
		Store:     repository.NewLedgerStore(db),
		Locker:    locker,
		Cache:     scheduleCache,
		Processor: processor.NewStripeProcessor(cfg.Stripe.SecretKey),
		Notifier:  notifier,
		Links:     issuer,
		Recorder:  m,
	}, service.PaymentConfig{
		Currency:     cfg.Stripe.Currency,
		MinimumCents: cfg.Stripe.MinimumCents,
		WaivePolicy:  waivePolicy,
	}, log)

	// Setup routes
	router := handler.NewRouter(handler.RouterDeps{
		Auth:     handler.NewAuthHandler(authService),
		Leases:   handler.NewLeaseHandler(leaseService),
		Payments: handler.NewPaymentHandler(paymentService),
		Admins:   handler.NewAdminHandler(adminService),
		Vehicles: handler.NewVehicleHandler(vehicleService),
		Health:   handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout()),
		Issuer:   issuer,
		Metrics:  m,
		Log:      log,
	})

	// Start server
	server := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	return db, nil
}

func initRedis(cfg *config.Config, log logrus.FieldLogger) (*redis.Client, service.Locker, service.ScheduleCache) {
	if cfg.Redis.URL == "" {
		log.Warn("REDIS_URL is not set, using in-process loan locks and no schedule cache")
		return nil, cache.NewLocalLocker(), cache.NopScheduleCache{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := cache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	return client, cache.NewLoanLocker(client, cfg.GetLockTTL()), cache.NewScheduleCache(client, cfg.GetScheduleTTL())
}
