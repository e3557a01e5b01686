package payments

import (
	"context"
	"sync"
	"time"

	"money-saver/pkg/ledger"
	"money-saver/pkg/logging"

	"go.uber.org/zap"
)

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// Interval between sweeps. Default: 1m
	Interval time.Duration
	// Grace leaves recent transactions to the user's own status checks. Default: 10m
	Grace time.Duration
	// BatchSize caps the transactions checked per sweep. Default: 50
	BatchSize int
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Checked int
	Settled int
	Failed  int
}

// Sweeper periodically re-checks pending transactions users never came back
// to verify. Each sweep resumes after the last transaction the previous one
// checked and wraps around once the backlog is exhausted, so rows that keep
// failing cannot hide newer ones.
type Sweeper struct {
	mu     sync.Mutex
	cursor ledger.Cursor

	ledger      ledger.Store
	deposits    *DepositFlow
	withdrawals *WithdrawalFlow
	config      SweeperConfig
	logger      *logging.Logger
	now         func() time.Time
}

// NewSweeper creates a sweeper over the flows.
func NewSweeper(store ledger.Store, deposits *DepositFlow, withdrawals *WithdrawalFlow, config SweeperConfig, logger *logging.Logger) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Grace <= 0 {
		config.Grace = 10 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	return &Sweeper{
		ledger:      store,
		deposits:    deposits,
		withdrawals: withdrawals,
		config:      config,
		logger:      logging.OrNoOp(logger).Named("sweeper"),
		now:         time.Now,
	}
}

// Run sweeps immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("grace", s.config.Grace),
	)
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep checks one batch of stale pending transactions. Errors are logged
// per transaction and the sweep moves on.
func (s *Sweeper) Sweep(ctx context.Context) SweepStats {
	var stats SweepStats

	s.mu.Lock()
	defer s.mu.Unlock()

	olderThan := s.now().Add(-s.config.Grace)
	pending, err := s.ledger.ListPending(ctx, olderThan, s.cursor, s.config.BatchSize)
	if err == nil && len(pending) == 0 && !s.cursor.IsZero() {
		pending, err = s.ledger.ListPending(ctx, olderThan, ledger.Cursor{}, s.config.BatchSize)
	}
	if err != nil {
		s.logger.Error("failed to list pending transactions", zap.Error(err))
		return stats
	}
	if len(pending) < s.config.BatchSize {
		s.cursor = ledger.Cursor{}
	} else {
		s.cursor = ledger.CursorOf(pending[len(pending)-1])
	}
	if len(pending) == 0 {
		return stats
	}

	s.logger.Info("reconciling pending transactions", zap.Int("count", len(pending)))

	for _, tx := range pending {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++

		var (
			result *VerifyResult
			err    error
		)
		switch tx.Type {
		case ledger.Deposit:
			result, err = s.deposits.Verify(ctx, tx.UserID, tx.Reference)
		case ledger.Withdrawal:
			result, err = s.withdrawals.CheckStatus(ctx, tx.UserID, tx.Reference)
		default:
			continue
		}
		if err != nil {
			stats.Failed++
			s.logger.Error("failed to reconcile transaction",
				logging.UserID(tx.UserID),
				logging.Reference(tx.Reference),
				zap.Error(err),
			)
			continue
		}
		if result.Transaction.Status.IsTerminal() {
			stats.Settled++
		}
	}

	s.logger.Info("sweep finished",
		zap.Int("checked", stats.Checked),
		zap.Int("settled", stats.Settled),
		zap.Int("failed", stats.Failed),
	)
	return stats
}
