package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"money-saver/pkg/bankaccount"
	"money-saver/pkg/config"
	"money-saver/pkg/logging"
	"money-saver/pkg/notify"
	"money-saver/pkg/notify/rabbitmq"
	"money-saver/pkg/payments"
	"money-saver/pkg/paystack"
	"money-saver/pkg/storage/postgres"

	"go.uber.org/zap"
)

// The reconciler settles transactions whose users never came back to
// confirm them.
func main() {
	logger, err := logging.FromEnv("money-saver-reconciler")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	gatewayConfig := paystack.DefaultConfig()
	gatewayConfig.BaseURL = cfg.Paystack.BaseURL
	gatewayConfig.SecretKey = cfg.Paystack.SecretKey
	gatewayConfig.Timeout = cfg.Paystack.Timeout
	gatewayConfig.Breaker = gatewayConfig.Breaker.WithOpenTimeout(cfg.Paystack.BreakerOpenTimeout)
	gateway, err := paystack.New(gatewayConfig, nil, logger)
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
	}
	notifier := notify.NewFanout(logger, postgres.NewNotificationStore(db), events...)

	ledgerStore := postgres.NewLedgerStore(db)
	deps := payments.Dependencies{
		Ledger:   ledgerStore,
		Gateway:  gateway,
		Users:    postgres.NewUserDirectory(db),
		Accounts: bankaccount.NewRegistry(postgres.NewAccountStore(db), notifier, logger),
		Notifier: notifier,
		Logger:   logger,
	}

	sweeper := payments.NewSweeper(ledgerStore,
		payments.NewDepositFlow(deps),
		payments.NewWithdrawalFlow(deps),
		payments.SweeperConfig{
			Interval:  cfg.Reconcile.Interval,
			Grace:     cfg.Reconcile.Grace,
			BatchSize: cfg.Reconcile.BatchSize,
		},
		logger,
	)

	logger.Info("Reconciler started",
		zap.Duration("interval", cfg.Reconcile.Interval),
		zap.Duration("grace", cfg.Reconcile.Grace))
	sweeper.Run(ctx)
	logger.Info("Reconciler stopped")
}
