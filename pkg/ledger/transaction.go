package ledger

import (
	"errors"
	"time"

	"money-saver/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the direction of a transaction.
type Type string

const (
	Deposit    Type = "deposit"
	Withdrawal Type = "withdrawal"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Failed
}

// Payment methods recorded on transactions.
const (
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
)

var (
	// ErrNotFound is returned when no transaction matches.
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicateReference is returned when a reference is already recorded.
	ErrDuplicateReference = errors.New("transaction reference already exists")
)

// Transaction is one ledger row. Amount is in major units and always positive.
type Transaction struct {
	ID            string
	UserID        string
	Amount        decimal.Decimal
	Type          Type
	Description   string
	Category      string
	PaymentMethod string
	Reference     string
	Status        Status
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// NewPending builds a pending transaction stamped with now.
func NewPending(userID string, typ Type, amount decimal.Decimal, reference string, now time.Time) (*Transaction, error) {
	if userID == "" {
		return nil, errors.New("transaction: user id is required")
	}
	if typ != Deposit && typ != Withdrawal {
		return nil, errors.New("transaction: unknown type " + string(typ))
	}
	if err := money.Validate(amount); err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, errors.New("transaction: reference is required")
	}
	return &Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Type:      typ,
		Reference: reference,
		Status:    Pending,
		CreatedAt: now.UTC(),
	}, nil
}

// Totals aggregates a user's ledger.
type Totals struct {
	// CompletedDeposits and CompletedWithdrawals sum only completed rows.
	CompletedDeposits    decimal.Decimal
	CompletedWithdrawals decimal.Decimal
	// PendingWithdrawals sums withdrawals still awaiting the processor.
	PendingWithdrawals decimal.Decimal
}

// Balance is completed deposits minus completed withdrawals.
func (t Totals) Balance() decimal.Decimal {
	return t.CompletedDeposits.Sub(t.CompletedWithdrawals)
}

// Available is Balance less pending withdrawals. New withdrawals are checked
// against it so money already promised to a payout cannot be promised twice.
func (t Totals) Available() decimal.Decimal {
	return t.Balance().Sub(t.PendingWithdrawals)
}

// Summary is the completed activity of a period.
type Summary struct {
	Since       time.Time
	Deposits    decimal.Decimal
	Withdrawals decimal.Decimal
}

// Net is deposits minus withdrawals.
func (s Summary) Net() decimal.Decimal {
	return s.Deposits.Sub(s.Withdrawals)
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
