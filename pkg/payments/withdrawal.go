package payments

import (
	"context"
	"fmt"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/bankaccount"
	"money-saver/pkg/ledger"
	"money-saver/pkg/logging"
	"money-saver/pkg/notify"
	"money-saver/pkg/paystack"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WithdrawalRequest asks to pay savings out to a linked bank account.
type WithdrawalRequest struct {
	UserID        string
	Amount        decimal.Decimal
	BankAccountID string
}

// WithdrawalResult identifies the initiated transfer.
type WithdrawalResult struct {
	Reference     string
	TransactionID string
	Status        ledger.Status
}

// WithdrawalFlow pays out to bank accounts and settles transfers.
type WithdrawalFlow struct {
	base
}

// NewWithdrawalFlow creates the flow.
func NewWithdrawalFlow(deps Dependencies) *WithdrawalFlow {
	return &WithdrawalFlow{base: newBase(deps, "withdrawal")}
}

// Initiate checks the available balance, makes sure the account has a
// processor recipient, starts the transfer and records a pending withdrawal.
// The account lookup and recipient setup happen before the user's ledger
// lock; under the lock only the lock's own store and the processor are used,
// so the balance check and the insert cannot race another withdrawal.
func (f *WithdrawalFlow) Initiate(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	if err := f.validate(req.UserID, req.Amount); err != nil {
		return nil, err
	}

	// Cheap early rejection so an obvious overdraft never reaches the processor.
	if err := f.checkAvailable(ctx, f.ledger, req); err != nil {
		return nil, err
	}

	account, err := f.accounts.Get(ctx, req.UserID, req.BankAccountID)
	if err != nil {
		return nil, exception(err)
	}
	if err := f.ensureRecipient(ctx, account); err != nil {
		return nil, err
	}

	var (
		tx        *ledger.Transaction
		paidOut   string
		payoutErr error
	)
	err = f.ledger.WithUserLock(ctx, req.UserID, func(ctx context.Context, store ledger.Store) error {
		if err := f.checkAvailable(ctx, store, req); err != nil {
			return err
		}

		reference := f.newReference()
		payout, err := f.gateway.InitiatePayout(ctx, req.Amount, account.RecipientCode, reference)
		if err != nil {
			payoutErr = err
			return apperrors.BadGateway(
				apperrors.WithMessage(paystack.Message(err, "Transfer failed")),
				apperrors.WithError(err),
			)
		}
		if payout.Reference != "" {
			reference = payout.Reference
		}
		paidOut = reference

		tx, err = ledger.NewPending(req.UserID, ledger.Withdrawal, req.Amount, reference, f.now())
		if err != nil {
			return err
		}
		tx.Description = fmt.Sprintf("Withdrawal to %s - %s", account.BankName, account.AccountNumber)
		tx.PaymentMethod = ledger.MethodBankTransfer

		if err := store.Create(ctx, tx); err != nil {
			return apperrors.Unexpected(apperrors.WithError(err))
		}
		return nil
	})
	if err != nil {
		if paidOut != "" {
			f.logger.Error("transfer initiated but withdrawal not recorded",
				logging.UserID(req.UserID),
				logging.Reference(paidOut),
				logging.Amount(req.Amount),
				zap.Error(err),
			)
		}
		if payoutErr != nil && paystack.IsRecipientInvalid(payoutErr) {
			if ferr := f.accounts.ForgetRecipient(ctx, account); ferr != nil {
				f.logger.Warn("clearing recipient code failed", logging.UserID(req.UserID), zap.Error(ferr))
			}
		}
		return nil, exception(err)
	}

	f.metrics.RecordTransition(string(ledger.Withdrawal), string(ledger.Pending))
	f.logger.Info("withdrawal initiated",
		logging.UserID(req.UserID),
		logging.Reference(tx.Reference),
		logging.Amount(req.Amount),
	)
	f.notify(ctx, notify.WithdrawalInitiated(req.UserID, req.Amount, account.BankName))

	return &WithdrawalResult{Reference: tx.Reference, TransactionID: tx.ID, Status: tx.Status}, nil
}

func (f *WithdrawalFlow) checkAvailable(ctx context.Context, store ledger.Store, req WithdrawalRequest) error {
	totals, err := store.Totals(ctx, req.UserID)
	if err != nil {
		return apperrors.Unexpected(apperrors.WithError(err))
	}
	if req.Amount.GreaterThan(totals.Available()) {
		return apperrors.BadRequest(apperrors.WithMessage("Insufficient balance"))
	}
	return nil
}

// ensureRecipient registers the account with the processor on first use and
// remembers the code on the account.
func (f *WithdrawalFlow) ensureRecipient(ctx context.Context, account *bankaccount.Account) error {
	if account.RecipientCode != "" {
		return nil
	}
	r, err := f.gateway.CreateRecipient(ctx, account.AccountName, account.AccountNumber, account.BankCode)
	if err != nil {
		return apperrors.BadGateway(apperrors.WithMessage("Failed to create transfer recipient"), apperrors.WithError(err))
	}
	if err := f.accounts.CacheRecipient(ctx, account, r.Code); err != nil {
		f.logger.Warn("storing recipient code failed",
			logging.UserID(account.UserID),
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		account.RecipientCode = r.Code
	}
	return nil
}

// CheckStatus asks the processor about a pending withdrawal and settles it.
// Settled withdrawals are returned as they are.
func (f *WithdrawalFlow) CheckStatus(ctx context.Context, userID, reference string) (*VerifyResult, error) {
	tx, err := f.find(ctx, userID, reference, ledger.Withdrawal)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() {
		return &VerifyResult{Transaction: tx}, nil
	}

	st, err := f.gateway.PayoutStatus(ctx, reference)
	if err != nil {
		return nil, apperrors.BadGateway(apperrors.WithMessage("Unable to verify transfer status"), apperrors.WithError(err))
	}
	result := &VerifyResult{Transaction: tx, GatewayStatus: st.Status, Reason: st.Reason}

	switch st.Status {
	case paystack.TransferSuccess:
		applied, err := f.complete(ctx, tx)
		if err != nil {
			return nil, err
		}
		if applied {
			f.notify(ctx, notify.WithdrawalCompleted(tx.UserID, tx.Amount))
		}
	case paystack.TransferFailed, paystack.TransferReversed, paystack.TransferAbandoned,
		paystack.TransferRejected, paystack.TransferBlocked:
		applied, err := f.fail(ctx, tx)
		if err != nil {
			return nil, err
		}
		if applied {
			f.notify(ctx, notify.WithdrawalFailed(tx.UserID, tx.Amount, st.Reason))
		}
	default:
		f.logger.Debug("withdrawal still pending",
			logging.Reference(reference),
			zap.String("transfer_status", st.Status),
		)
	}
	return result, nil
}
