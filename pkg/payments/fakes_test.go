package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"money-saver/pkg/bankaccount"
	"money-saver/pkg/ledger"
	"money-saver/pkg/paystack"
	"money-saver/pkg/storage/memory"
	"money-saver/pkg/user"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeGateway records calls and answers with scripted results.
type fakeGateway struct {
	mu sync.Mutex

	initializeCalls int
	verifyCalls     int
	recipientCalls  int
	payoutCalls     int
	statusCalls     int
	payoutAmounts   []decimal.Decimal

	initializeErr error
	chargeStatus  string
	chargeAmount  int64
	verifyErr     error
	verifyErrs    map[string]error
	recipientErr  error
	payoutErr     error
	payoutStatus  string
	payoutReason  string
	statusErr     error
	payoutDelay   time.Duration
}

func (g *fakeGateway) InitializeCharge(ctx context.Context, email string, amountMinor int64, reference string) (*paystack.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initializeCalls++
	if g.initializeErr != nil {
		return nil, g.initializeErr
	}
	return &paystack.Charge{
		AuthorizationURL: "https://checkout.paystack.com/" + reference,
		AccessCode:       "access",
		Reference:        reference,
	}, nil
}

func (g *fakeGateway) VerifyCharge(ctx context.Context, reference string) (*paystack.ChargeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if err := g.verifyErrs[reference]; err != nil {
		return nil, err
	}
	return &paystack.ChargeStatus{Status: g.chargeStatus, Reference: reference, GatewayResponse: "Approved", Amount: g.chargeAmount}, nil
}

func (g *fakeGateway) CreateRecipient(ctx context.Context, name, accountNumber, bankCode string) (*paystack.Recipient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recipientCalls++
	if g.recipientErr != nil {
		return nil, g.recipientErr
	}
	return &paystack.Recipient{Code: "RCP_" + accountNumber, Name: name}, nil
}

func (g *fakeGateway) InitiatePayout(ctx context.Context, amount decimal.Decimal, recipient, reference string) (*paystack.Payout, error) {
	g.mu.Lock()
	g.payoutCalls++
	g.payoutAmounts = append(g.payoutAmounts, amount)
	err, delay := g.payoutErr, g.payoutDelay
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &paystack.Payout{Reference: reference, TransferCode: "TRF_" + reference, Status: "pending"}, nil
}

func (g *fakeGateway) PayoutStatus(ctx context.Context, code string) (*paystack.PayoutStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return &paystack.PayoutStatus{Status: g.payoutStatus, Reason: g.payoutReason, Reference: code}, nil
}

type fixture struct {
	ledger        *memory.LedgerStore
	accounts      *memory.AccountStore
	notifications *memory.NotificationStore
	registry      *bankaccount.Registry
	gateway       *fakeGateway
	deposits      *DepositFlow
	withdrawals   *WithdrawalFlow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:        memory.NewLedgerStore(),
		accounts:      memory.NewAccountStore(),
		notifications: memory.NewNotificationStore(),
		gateway:       &fakeGateway{},
	}
	f.registry = bankaccount.NewRegistry(f.accounts, nil, nil)

	deps := Dependencies{
		Ledger:   f.ledger,
		Gateway:  f.gateway,
		Users:    memory.NewUserDirectory(&user.User{ID: "u1", Email: "ada@example.com"}, &user.User{ID: "u2", Email: "bob@example.com"}),
		Accounts: f.registry,
		Notifier: f.notifications,
	}
	f.deposits = NewDepositFlow(deps)
	f.withdrawals = NewWithdrawalFlow(deps)
	return f
}

// fund records a completed deposit of amount for userID.
func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := ledger.NewPending(userID, ledger.Deposit, decimal.NewFromInt(amount), "FUND-"+uuid.NewString(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.Create(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.Complete(ctx, tx.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
}

// linkAccount adds a verified account for userID without a recipient code.
func (f *fixture) linkAccount(t *testing.T, userID string) *bankaccount.Account {
	t.Helper()
	a, err := f.registry.Add(context.Background(), bankaccount.AddInput{
		UserID:        userID,
		BankName:      "GTBank",
		BankCode:      "058",
		AccountNumber: "0123456789",
		AccountName:   "ADA LOVELACE",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return a
}

func (f *fixture) balance(t *testing.T, userID string) ledger.Totals {
	t.Helper()
	totals, err := f.ledger.Totals(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return totals
}
