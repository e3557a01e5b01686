package payments

import (
	"context"
	"errors"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/ledger"
	"money-saver/pkg/logging"
	"money-saver/pkg/money"
	"money-saver/pkg/notify"
	"money-saver/pkg/paystack"
	"money-saver/pkg/user"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DepositRequest asks to move money into savings through hosted checkout.
type DepositRequest struct {
	UserID string
	Amount decimal.Decimal
	// BankAccountID optionally names the linked account the user pays from.
	// It is only recorded in the description.
	BankAccountID string
	Description   string
	Category      string
}

// DepositResult is where to send the user to pay.
type DepositResult struct {
	AuthorizationURL string
	Reference        string
	TransactionID    string
}

// VerifyResult is the outcome of a status check.
type VerifyResult struct {
	Transaction *ledger.Transaction
	// GatewayStatus is the processor's raw status; empty when the
	// transaction was already settled and the processor was not asked.
	GatewayStatus string
	// Reason is the processor's explanation, if any.
	Reason string
	// Charged is the amount the processor reports, zero when it reported none.
	Charged decimal.Decimal
}

// DepositFlow records deposits and settles them against the processor.
type DepositFlow struct {
	base
}

// NewDepositFlow creates the flow.
func NewDepositFlow(deps Dependencies) *DepositFlow {
	return &DepositFlow{base: newBase(deps, "deposit")}
}

// Initiate starts a hosted-checkout charge and records a pending deposit.
// Nothing is written when the processor refuses the charge.
func (f *DepositFlow) Initiate(ctx context.Context, req DepositRequest) (*DepositResult, error) {
	if err := f.validate(req.UserID, req.Amount); err != nil {
		return nil, err
	}
	if req.BankAccountID != "" {
		if _, err := f.accounts.Get(ctx, req.UserID, req.BankAccountID); err != nil {
			return nil, exception(err)
		}
	}

	u, err := f.users.Get(ctx, req.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.WithMessage("User not found"), apperrors.WithError(err))
	}
	if err != nil {
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}

	reference := f.newReference()
	charge, err := f.gateway.InitializeCharge(ctx, u.Email, money.ToMinor(req.Amount), reference)
	if err != nil {
		return nil, apperrors.BadGateway(
			apperrors.WithMessage(paystack.Message(err, "Payment initialization failed")),
			apperrors.WithError(err),
		)
	}
	if charge.Reference != "" {
		reference = charge.Reference
	}

	tx, err := ledger.NewPending(req.UserID, ledger.Deposit, req.Amount, reference, f.now())
	if err != nil {
		return nil, apperrors.BadRequest(apperrors.WithMessage(err.Error()), apperrors.WithError(err))
	}
	tx.Description = req.Description
	if tx.Description == "" {
		tx.Description = "Deposit"
		if req.BankAccountID != "" {
			tx.Description = "Deposit via bank account " + req.BankAccountID
		}
	}
	tx.Category = req.Category
	tx.PaymentMethod = ledger.MethodCard

	if err := f.ledger.Create(ctx, tx); err != nil {
		f.logger.Error("charge initialized but deposit not recorded",
			logging.UserID(req.UserID),
			logging.Reference(reference),
			logging.Amount(req.Amount),
			zap.Error(err),
		)
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	f.metrics.RecordTransition(string(ledger.Deposit), string(ledger.Pending))

	f.logger.Info("deposit initiated",
		logging.UserID(req.UserID),
		logging.Reference(reference),
		logging.Amount(req.Amount),
	)
	return &DepositResult{
		AuthorizationURL: charge.AuthorizationURL,
		Reference:        reference,
		TransactionID:    tx.ID,
	}, nil
}

// Verify asks the processor about a pending deposit and settles it. Settled
// deposits are returned as they are.
func (f *DepositFlow) Verify(ctx context.Context, userID, reference string) (*VerifyResult, error) {
	tx, err := f.find(ctx, userID, reference, ledger.Deposit)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() {
		return &VerifyResult{Transaction: tx}, nil
	}

	st, err := f.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		return nil, apperrors.BadGateway(apperrors.WithMessage("Payment verification failed"), apperrors.WithError(err))
	}
	result := &VerifyResult{
		Transaction:   tx,
		GatewayStatus: st.Status,
		Reason:        st.GatewayResponse,
		Charged:       money.FromMinor(st.Amount),
	}

	switch st.Status {
	case paystack.ChargeSuccess:
		if st.Amount != 0 && !result.Charged.Equal(tx.Amount) {
			f.logger.Warn("charged amount differs from ledger",
				logging.Reference(reference),
				zap.String("ledger_amount", tx.Amount.StringFixed(2)),
				zap.String("charged_amount", result.Charged.StringFixed(2)),
			)
		}
		applied, err := f.complete(ctx, tx)
		if err != nil {
			return nil, err
		}
		if applied {
			f.notify(ctx, notify.DepositSucceeded(tx.UserID, tx.Amount))
		}
	case paystack.ChargeFailed, paystack.ChargeAbandoned, paystack.ChargeReversed:
		if _, err := f.fail(ctx, tx); err != nil {
			return nil, err
		}
	default:
		f.logger.Debug("deposit still pending",
			logging.Reference(reference),
			zap.String("gateway_status", st.Status),
		)
	}
	return result, nil
}
