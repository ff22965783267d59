package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/lease-billing/internal/config"
	"github.com/segyhp/lease-billing/internal/domain"
	"github.com/segyhp/lease-billing/internal/migration"
	"github.com/segyhp/lease-billing/internal/repository"
	"github.com/segyhp/lease-billing/internal/service"
	customError "github.com/segyhp/lease-billing/pkg/errors"
	"github.com/segyhp/lease-billing/pkg/logger"
)

func main() {
	steps := flag.Int("steps", 0, "number of migrations to roll back with down (0 means all)")
	adminName := flag.String("name", "Administrator", "name of the admin created by seed-admin")
	adminEmail := flag.String("email", "", "email of the admin created by seed-admin")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: migrate [-steps n] up|down|version\n       migrate -email addr [-name n] seed-admin (password from ADMIN_PASSWORD)\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	m, err := migration.New(db.DB)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	switch flag.Arg(0) {
	case "up":
		err = m.Up()
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "seed-admin":
		seedAdmin(db, cfg, log, *adminName, *adminEmail)
		return
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatalf("Failed to read migration version: %v", verr)
		}
		log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Current migration version")
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration %s failed: %v", flag.Arg(0), err)
	}
	log.WithField("direction", flag.Arg(0)).Info("Migrations applied")
}

// seedAdmin creates the first admin account, which cannot be created over the API
// before anyone can log in.
func seedAdmin(db *sqlx.DB, cfg *config.Config, log logrus.FieldLogger, name, email string) {
	req := &domain.CreateAdminRequest{Name: name, Email: email, Password: os.Getenv("ADMIN_PASSWORD")}
	if err := validator.New().Struct(req); err != nil {
		log.Fatalf("Invalid admin: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admins := service.NewAdminService(repository.NewAdminRepository(db), cfg.Auth.BcryptCost, log)
	admin, err := admins.CreateAdmin(ctx, req)
	if errors.Is(err, customError.ErrAdminAlreadyExists) {
		log.WithField("email", email).Info("Admin already exists")
		return
	}
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	log.WithField("admin_id", admin.ID).Info("Admin seeded")
}
