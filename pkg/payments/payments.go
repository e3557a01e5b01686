// Package payments drives money in and out of users' savings through the
// payment processor: hosted-checkout deposits, bank-transfer withdrawals and
// the status checks that settle them in the ledger.
package payments

import (
	"context"
	"errors"
	"time"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/bankaccount"
	"money-saver/pkg/ledger"
	"money-saver/pkg/logging"
	"money-saver/pkg/metrics"
	"money-saver/pkg/money"
	"money-saver/pkg/notify"
	"money-saver/pkg/paystack"
	"money-saver/pkg/user"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gateway is the payment processor.
type Gateway interface {
	InitializeCharge(ctx context.Context, email string, amountMinor int64, reference string) (*paystack.Charge, error)
	VerifyCharge(ctx context.Context, reference string) (*paystack.ChargeStatus, error)
	CreateRecipient(ctx context.Context, name, accountNumber, bankCode string) (*paystack.Recipient, error)
	InitiatePayout(ctx context.Context, amount decimal.Decimal, recipient, reference string) (*paystack.Payout, error)
	PayoutStatus(ctx context.Context, code string) (*paystack.PayoutStatus, error)
}

// Accounts is the bank account registry as seen by the flows.
type Accounts interface {
	Get(ctx context.Context, userID, id string) (*bankaccount.Account, error)
	CacheRecipient(ctx context.Context, a *bankaccount.Account, code string) error
	ForgetRecipient(ctx context.Context, a *bankaccount.Account) error
}

// Dependencies are shared by the flows. Metrics, Logger and Notifier may be nil.
type Dependencies struct {
	Ledger   ledger.Store
	Gateway  Gateway
	Users    user.Directory
	Accounts Accounts
	Notifier notify.Notifier
	Metrics  metrics.Collector
	Logger   *logging.Logger
}

// base holds what both flows use.
type base struct {
	ledger       ledger.Store
	gateway      Gateway
	users        user.Directory
	accounts     Accounts
	notifier     notify.Notifier
	metrics      metrics.Collector
	logger       *logging.Logger
	now          func() time.Time
	newReference func() string
}

func newBase(deps Dependencies, name string) base {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	return base{
		ledger:       deps.Ledger,
		gateway:      deps.Gateway,
		users:        deps.Users,
		accounts:     deps.Accounts,
		notifier:     notifier,
		metrics:      metrics.OrNoOp(deps.Metrics),
		logger:       logging.OrNoOp(deps.Logger).Named(name),
		now:          time.Now,
		newReference: money.NewReference,
	}
}

func (b *base) validate(userID string, amount decimal.Decimal) error {
	if userID == "" {
		return apperrors.Unauthorized()
	}
	if err := money.Validate(amount); err != nil {
		return apperrors.BadRequest(apperrors.WithMessage(err.Error()), apperrors.WithError(err))
	}
	return nil
}

// find loads the caller's transaction of the given type.
func (b *base) find(ctx context.Context, userID, reference string, typ ledger.Type) (*ledger.Transaction, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized()
	}
	tx, err := b.ledger.FindByReference(ctx, userID, reference)
	if errors.Is(err, ledger.ErrNotFound) || (err == nil && tx.Type != typ) {
		return nil, apperrors.NotFound(apperrors.WithMessage("Transaction not found"))
	}
	if err != nil {
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	return tx, nil
}

// complete moves tx to completed. It reports whether this call applied the
// transition; tx is refreshed either way.
func (b *base) complete(ctx context.Context, tx *ledger.Transaction) (bool, error) {
	applied, err := b.ledger.Complete(ctx, tx.ID, b.now())
	if err != nil {
		return false, apperrors.Unexpected(apperrors.WithError(err))
	}
	return applied, b.settled(ctx, tx, applied)
}

// fail moves tx to failed, like complete.
func (b *base) fail(ctx context.Context, tx *ledger.Transaction) (bool, error) {
	applied, err := b.ledger.Fail(ctx, tx.ID)
	if err != nil {
		return false, apperrors.Unexpected(apperrors.WithError(err))
	}
	return applied, b.settled(ctx, tx, applied)
}

func (b *base) settled(ctx context.Context, tx *ledger.Transaction, applied bool) error {
	fresh, err := b.ledger.FindByReference(ctx, tx.UserID, tx.Reference)
	if err != nil {
		return apperrors.Unexpected(apperrors.WithError(err))
	}
	*tx = *fresh
	if applied {
		b.metrics.RecordTransition(string(tx.Type), string(tx.Status))
		b.logger.Info("transaction settled",
			logging.UserID(tx.UserID),
			logging.Reference(tx.Reference),
			zap.String("status", string(tx.Status)),
		)
	}
	return nil
}

// notify delivers n; failures are logged and never undo a ledger change.
func (b *base) notify(ctx context.Context, n *notify.Notification) {
	if err := b.notifier.Notify(ctx, n); err != nil {
		b.logger.Warn("notification failed",
			logging.UserID(n.UserID),
			zap.String("title", n.Title),
			zap.Error(err),
		)
	}
}

// exception turns err into an *apperrors.Exception, keeping existing ones.
func exception(err error) *apperrors.Exception {
	return apperrors.As(err)
}
