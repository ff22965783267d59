package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Auth      AuthConfig      `mapstructure:",squash"`
	Stripe    StripeConfig    `mapstructure:",squash"`
	Ledger    LedgerConfig    `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port string `mapstructure:"SERVER_PORT"`
	Host string `mapstructure:"SERVER_HOST"`
	Env  string `mapstructure:"ENV"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	URL         string `mapstructure:"REDIS_URL"`
	ScheduleTTL string `mapstructure:"REDIS_SCHEDULE_TTL"`
	LockTTL     string `mapstructure:"REDIS_LOCK_TTL"`
}

type SchedulerConfig struct {
	NotificationCron string `mapstructure:"SCHEDULER_NOTIFICATION_CRON"`
	Timezone         string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type AuthConfig struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	TokenTTL       string `mapstructure:"JWT_TOKEN_TTL"`
	PaymentLinkTTL string `mapstructure:"PAYMENT_LINK_TTL"`
	BcryptCost     int    `mapstructure:"BCRYPT_COST"`
}

type StripeConfig struct {
	SecretKey    string `mapstructure:"STRIPE_SECRET_KEY"`
	Currency     string `mapstructure:"STRIPE_CURRENCY"`
	MinimumCents int64  `mapstructure:"STRIPE_MINIMUM_CENTS"`
}

type LedgerConfig struct {
	WaivePolicy                string `mapstructure:"LEDGER_WAIVE_POLICY"`
	OverdueDaysForNotification int    `mapstructure:"OVERDUE_DAYS_FOR_NOTIFICATION"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_SCHEDULE_TTL", "10m")
	v.SetDefault("REDIS_LOCK_TTL", "30s")
	v.SetDefault("SCHEDULER_NOTIFICATION_CRON", "0 9 * * *")
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TOKEN_TTL", "24h")
	v.SetDefault("PAYMENT_LINK_TTL", "72h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_CURRENCY", "usd")
	v.SetDefault("STRIPE_MINIMUM_CENTS", 50)
	v.SetDefault("LEDGER_WAIVE_POLICY", "forgive")
	v.SetDefault("OVERDUE_DAYS_FOR_NOTIFICATION", 7)
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Preload .env so child libraries reading os.Getenv see the same values
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	if c.Stripe.MinimumCents < 0 {
		return fmt.Errorf("STRIPE_MINIMUM_CENTS cannot be negative")
	}

	switch c.Ledger.WaivePolicy {
	case "forgive", "defer":
	default:
		return fmt.Errorf("LEDGER_WAIVE_POLICY must be forgive or defer, got %q", c.Ledger.WaivePolicy)
	}

	if c.Ledger.OverdueDaysForNotification <= 0 {
		return fmt.Errorf("OVERDUE_DAYS_FOR_NOTIFICATION must be greater than 0")
	}

	for key, value := range map[string]string{
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"REDIS_SCHEDULE_TTL":         c.Redis.ScheduleTTL,
		"REDIS_LOCK_TTL":             c.Redis.LockTTL,
		"JWT_TOKEN_TTL":              c.Auth.TokenTTL,
		"PAYMENT_LINK_TTL":           c.Auth.PaymentLinkTTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

func (c *Config) GetConnMaxLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Database.ConnMaxLifetime)
	return d
}

func (c *Config) GetScheduleTTL() time.Duration {
	d, _ := time.ParseDuration(c.Redis.ScheduleTTL)
	return d
}

func (c *Config) GetLockTTL() time.Duration {
	d, _ := time.ParseDuration(c.Redis.LockTTL)
	return d
}

func (c *Config) GetTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.TokenTTL)
	return d
}

func (c *Config) GetPaymentLinkTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.PaymentLinkTTL)
	return d
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}

// GetLocation returns the scheduler timezone
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
