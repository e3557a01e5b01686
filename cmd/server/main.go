package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"money-saver/pkg/api"
	"money-saver/pkg/bankaccount"
	"money-saver/pkg/cache"
	"money-saver/pkg/cache/bloom"
	"money-saver/pkg/cache/memory"
	"money-saver/pkg/cache/redis"
	"money-saver/pkg/chain"
	"money-saver/pkg/config"
	"money-saver/pkg/directory"
	"money-saver/pkg/goal"
	"money-saver/pkg/logging"
	promMetrics "money-saver/pkg/metrics/prometheus"
	"money-saver/pkg/notify"
	"money-saver/pkg/notify/rabbitmq"
	"money-saver/pkg/payments"
	"money-saver/pkg/paystack"
	"money-saver/pkg/storage/postgres"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.FromEnv("money-saver")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	collector := promMetrics.NewCollector("money_saver")
	if err := collector.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	ctx := context.Background()

	db, err := postgres.Open(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}
	logger.Info("PostgreSQL ready")

	// Directory cache: process memory, then Redis behind a bloom filter when configured.
	layers := []cache.Layer{memory.New(memory.Config{
		Name:       "L1-Memory",
		MaxEntries: 10000,
		DefaultTTL: 5 * time.Minute,
	})}
	var filter *bloom.Layer
	if cfg.Redis.Addr != "" {
		redisCache, err := redis.New(redis.ConfigFromAddr(cfg.Redis.Addr, cfg.Redis.Password))
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		filter = bloom.New(redisCache, 100000, 0.01)
		layers = append(layers, filter)
		logger.Info("Redis cache layer enabled", zap.String("addr", cfg.Redis.Addr))
	}
	directoryCache, err := chain.New(chain.Config{
		TTL:     chain.DecayingTTL{Factor: 0.5, Floor: 30 * time.Second},
		Metrics: collector,
		Logger:  logger,
	}, layers...)
	if err != nil {
		logger.Fatal("Failed to create cache chain", zap.Error(err))
	}
	defer directoryCache.Close()
	logger.Info("Directory cache ready",
		zap.Stringer("chain", directoryCache),
		zap.Int("layers", directoryCache.Len()),
	)

	gatewayConfig := paystack.DefaultConfig()
	gatewayConfig.BaseURL = cfg.Paystack.BaseURL
	gatewayConfig.SecretKey = cfg.Paystack.SecretKey
	gatewayConfig.Timeout = cfg.Paystack.Timeout
	gatewayConfig.Breaker = gatewayConfig.Breaker.WithOpenTimeout(cfg.Paystack.BreakerOpenTimeout)
	gateway, err := paystack.New(gatewayConfig, collector, logger)
	if err != nil {
		logger.Fatal("Failed to create payment gateway client", zap.Error(err))
	}

	var events []notify.Notifier
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		events = append(events, publisher)
		logger.Info("Publishing notifications", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}
	notifier := notify.NewFanout(logger, postgres.NewNotificationStore(db), events...)

	ledgerStore := postgres.NewLedgerStore(db)
	registry := bankaccount.NewRegistry(postgres.NewAccountStore(db), notifier, logger)
	goals := goal.NewService(postgres.NewGoalStore(db), notifier, logger)
	deps := payments.Dependencies{
		Ledger:   ledgerStore,
		Gateway:  gateway,
		Users:    postgres.NewUserDirectory(db),
		Accounts: registry,
		Notifier: notifier,
		Metrics:  collector,
		Logger:   logger,
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Address = ":" + cfg.Server.Port
	serverConfig.PageSize = cfg.Server.PageSize
	server := api.NewServer(api.Services{
		Deposits:    payments.NewDepositFlow(deps),
		Withdrawals: payments.NewWithdrawalFlow(deps),
		Accounts:    registry,
		Directory:   directory.New(gateway, directoryCache, logger),
		Goals:       goals,
		Ledger:      ledgerStore,
		Metrics:     promhttp.Handler(),
	}, serverConfig, collector, logger)
	server.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if filter != nil {
		stats := filter.Stats()
		logger.Info("Bloom filter stats",
			zap.Uint64("queries", stats.Queries),
			zap.Uint64("rejected", stats.Rejected),
			zap.Uint64("false_positives", stats.FalsePositives),
		)
	}
	logger.Info("Server exited")
}
