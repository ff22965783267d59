package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/config"
	"github.com/segyhp/lease-billing/internal/metrics"
	"github.com/segyhp/lease-billing/internal/notification"
	"github.com/segyhp/lease-billing/internal/repository"
	"github.com/segyhp/lease-billing/pkg/logger"
)

// jobTimeout bounds one reminder run
const jobTimeout = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("Starting billing scheduler...")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	customers := repository.NewCustomerRepository(db)
	notifier := notification.NewService(
		repository.NewNotificationRepository(db),
		customers,
		notification.NewLogPusher(log),
		metrics.New(),
		log,
	)
	job := notification.NewJob(
		repository.NewLoanRepository(db),
		repository.NewPaymentRepository(db),
		notifier,
		cfg.Ledger.OverdueDaysForNotification,
		log,
	)

	loc := cfg.GetLocation()
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.VerbosePrintfLogger(log)),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	// Daily payment reminders
	_, err = c.AddFunc(cfg.Scheduler.NotificationCron, func() {
		runReminders(job, loc, log)
	})
	if err != nil {
		log.Fatalf("Error scheduling payment reminder job: %v", err)
	}

	// Start the scheduler
	c.Start()
	log.WithFields(logrus.Fields{
		"cron":     cfg.Scheduler.NotificationCron,
		"timezone": loc.String(),
	}).Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

func runReminders(job *notification.Job, loc *time.Location, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	log.Info("Running daily payment reminder job...")
	if _, err := job.Run(ctx, time.Now().In(loc)); err != nil {
		log.WithError(err).Error("Payment reminder job failed")
	}
}
