package bankaccount

import (
	"context"
	"errors"
	"time"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/logging"
	"money-saver/pkg/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry manages the bank accounts users link for withdrawals.
type Registry struct {
	store    Store
	notifier notify.Notifier
	logger   *logging.Logger
	now      func() time.Time
}

// NewRegistry creates a Registry. A nil notifier discards notifications.
func NewRegistry(store Store, notifier notify.Notifier, logger *logging.Logger) *Registry {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Registry{
		store:    store,
		notifier: notifier,
		logger:   logging.OrNoOp(logger).Named("bankaccount"),
		now:      time.Now,
	}
}

// Add links a resolved account to the user. The account is stored as
// verified; resolving it against the processor is the caller's job.
func (r *Registry) Add(ctx context.Context, in AddInput) (*Account, error) {
	if in.UserID == "" {
		return nil, apperrors.Unauthorized()
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, apperrors.BadRequest(apperrors.WithMessage(err.Error()), apperrors.WithError(err))
	}

	a := &Account{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		BankName:      in.BankName,
		BankCode:      in.BankCode,
		AccountNumber: in.AccountNumber,
		AccountName:   in.AccountName,
		BVN:           in.BVN,
		Verified:      true,
		CreatedAt:     r.now().UTC(),
	}

	if err := r.store.Insert(ctx, a); err != nil {
		var ex *apperrors.Exception
		if errors.As(err, &ex) {
			return nil, ex
		}
		if errors.Is(err, ErrDuplicate) {
			return nil, apperrors.Conflict(apperrors.WithMessage(ErrDuplicate.Error()), apperrors.WithError(err))
		}
		return nil, apperrors.Unexpected(
			apperrors.WithMessage("An error occurred while saving your bank account. Please try again."),
			apperrors.WithError(err),
		)
	}

	r.logger.Info("bank account added",
		logging.UserID(a.UserID),
		zap.String("account_id", a.ID),
		zap.String("bank_code", a.BankCode),
	)

	if err := r.notifier.Notify(ctx, notify.BankAccountAdded(a.UserID, a.BankName, a.Masked())); err != nil {
		r.logger.Warn("bank account notification failed", logging.UserID(a.UserID), zap.Error(err))
	}
	return a, nil
}

// ListVerified returns the user's verified accounts.
func (r *Registry) ListVerified(ctx context.Context, userID string) ([]*Account, error) {
	accounts, err := r.store.ListVerified(ctx, userID)
	if err != nil {
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	return accounts, nil
}

// Get returns the user's account with id. Accounts owned by someone else are
// reported exactly like missing ones.
func (r *Registry) Get(ctx context.Context, userID, id string) (*Account, error) {
	a, err := r.store.Get(ctx, userID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.WithMessage("Invalid bank account"), apperrors.WithError(err))
	}
	if err != nil {
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	return a, nil
}

// CacheRecipient remembers the processor's payout handle for the account.
func (r *Registry) CacheRecipient(ctx context.Context, a *Account, code string) error {
	if err := r.store.SetRecipientCode(ctx, a.ID, code); err != nil {
		return err
	}
	a.RecipientCode = code
	return nil
}

// ForgetRecipient clears a payout handle the processor no longer accepts so
// the next withdrawal creates a fresh one.
func (r *Registry) ForgetRecipient(ctx context.Context, a *Account) error {
	if err := r.store.SetRecipientCode(ctx, a.ID, ""); err != nil {
		return err
	}
	r.logger.Info("recipient code cleared", logging.UserID(a.UserID), zap.String("account_id", a.ID))
	a.RecipientCode = ""
	return nil
}
