package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Paystack  PaystackConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	// PageSize is the number of transactions per history page.
	PageSize int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig is optional; an empty Addr keeps the directory cache in process.
type RedisConfig struct {
	Addr     string
	Password string
}

// RabbitMQConfig is optional; an empty URL disables event publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type PaystackConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	// BreakerOpenTimeout is how long the gateway breaker stays open after tripping.
	BreakerOpenTimeout time.Duration
}

type ReconcileConfig struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

// Load reads the environment, falling back to development defaults.
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("DB_PORT: %w", err)
	}
	pageSize, err := strconv.Atoi(getEnv("TRANSACTIONS_PER_PAGE", "10"))
	if err != nil {
		return nil, fmt.Errorf("TRANSACTIONS_PER_PAGE: %w", err)
	}
	batchSize, err := strconv.Atoi(getEnv("RECONCILE_BATCH_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("RECONCILE_BATCH_SIZE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			PageSize: pageSize,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "money_saver"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBIT_URL"),
			Exchange: getEnv("RABBIT_EXCHANGE", "money-saver.events"),
		},
		Paystack: PaystackConfig{
			BaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		},
		Reconcile: ReconcileConfig{
			BatchSize: batchSize,
		},
	}

	for _, d := range []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", "30s", &cfg.Server.ShutdownTimeout},
		{"PAYSTACK_TIMEOUT", "15s", &cfg.Paystack.Timeout},
		{"PAYSTACK_BREAKER_OPEN_TIMEOUT", "30s", &cfg.Paystack.BreakerOpenTimeout},
		{"RECONCILE_INTERVAL", "1m", &cfg.Reconcile.Interval},
		{"RECONCILE_GRACE", "10m", &cfg.Reconcile.Grace},
	} {
		v, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	if c.Paystack.SecretKey == "" {
		errs = append(errs, errors.New("PAYSTACK_SECRET_KEY is required"))
	}
	if c.Server.PageSize <= 0 {
		errs = append(errs, errors.New("TRANSACTIONS_PER_PAGE must be positive"))
	}
	if c.Reconcile.BatchSize <= 0 {
		errs = append(errs, errors.New("RECONCILE_BATCH_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
