package payments

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/bankaccount"
	"money-saver/pkg/ledger"
	"money-saver/pkg/paystack"
	"money-saver/pkg/storage/memory"
	"money-saver/pkg/user"

	"github.com/shopspring/decimal"
)

func TestWithdrawalInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")

	_, err := f.withdrawals.Initiate(context.Background(), WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(6000), BankAccountID: a.ID})
	if !apperrors.HasCode(err, http.StatusBadRequest) || err.Error() != "Insufficient balance" {
		t.Fatalf("unexpected error %v", err)
	}
	if f.gateway.recipientCalls+f.gateway.payoutCalls != 0 {
		t.Error("gateway must not be called")
	}
	if rows, _ := f.ledger.List(context.Background(), "u1", 10, 0); len(rows) != 1 {
		t.Errorf("only the funding deposit should exist, found %d rows", len(rows))
	}
}

func TestWithdrawalCreatesRecipientOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")

	res, err := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(3000), BankAccountID: a.ID})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if f.gateway.recipientCalls != 1 || f.gateway.payoutCalls != 1 {
		t.Fatalf("recipient=%d payout=%d calls", f.gateway.recipientCalls, f.gateway.payoutCalls)
	}
	if !f.gateway.payoutAmounts[0].Equal(decimal.NewFromInt(3000)) {
		t.Errorf("payout amount = %s", f.gateway.payoutAmounts[0])
	}

	stored, _ := f.accounts.Get(ctx, "u1", a.ID)
	if stored.RecipientCode != "RCP_0123456789" {
		t.Errorf("recipient code not cached: %q", stored.RecipientCode)
	}

	tx, err := f.ledger.FindByReference(ctx, "u1", res.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if tx.Type != ledger.Withdrawal || tx.Status != ledger.Pending || tx.PaymentMethod != ledger.MethodBankTransfer {
		t.Errorf("unexpected row %+v", tx)
	}
	if tx.Description != "Withdrawal to GTBank - 0123456789" {
		t.Errorf("Description = %q", tx.Description)
	}

	totals := f.balance(t, "u1")
	if !totals.Balance().Equal(decimal.NewFromInt(5000)) || !totals.Available().Equal(decimal.NewFromInt(2000)) {
		t.Errorf("balance=%s available=%s", totals.Balance(), totals.Available())
	}

	notes := f.notifications.ForUser("u1")
	if len(notes) != 1 || notes[0].Title != "Withdrawal Initiated" {
		t.Errorf("notifications = %v", notes)
	}

	f.fund(t, "u1", 1000)
	if _, err := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(1000), BankAccountID: a.ID}); err != nil {
		t.Fatalf("second Initiate: %v", err)
	}
	if f.gateway.recipientCalls != 1 {
		t.Error("recipient code should be reused")
	}
}

func TestWithdrawalConcurrentRequestsCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")
	f.gateway.payoutDelay = 10 * time.Millisecond

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.withdrawals.Initiate(context.Background(), WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(3000), BankAccountID: a.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperrors.HasCode(err, http.StatusBadRequest) {
				fail++
			}
		}()
	}
	wg.Wait()

	if ok != 1 || fail != 1 {
		t.Fatalf("expected one success and one insufficient balance, got ok=%d fail=%d", ok, fail)
	}
	if f.gateway.payoutCalls != 1 {
		t.Errorf("payout calls = %d", f.gateway.payoutCalls)
	}
}

func TestWithdrawalForeignAccount(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u2", 5000)
	a := f.linkAccount(t, "u1")

	_, err := f.withdrawals.Initiate(context.Background(), WithdrawalRequest{UserID: "u2", Amount: decimal.NewFromInt(100), BankAccountID: a.ID})
	if !apperrors.HasCode(err, http.StatusNotFound) || err.Error() != "Invalid bank account" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestWithdrawalRecipientFailure(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")
	f.gateway.recipientErr = &paystack.Error{Op: "create_recipient", StatusCode: 400, Message: "Account details are invalid"}

	_, err := f.withdrawals.Initiate(context.Background(), WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(100), BankAccountID: a.ID})
	if !apperrors.HasCode(err, http.StatusBadGateway) || err.Error() != "Failed to create transfer recipient" {
		t.Fatalf("unexpected error %v", err)
	}
	if f.gateway.payoutCalls != 0 {
		t.Error("payout must not be attempted")
	}
}

func TestWithdrawalPayoutFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")
	f.gateway.payoutErr = &paystack.Error{Op: "initiate_payout", StatusCode: 400, Message: "Your balance is not enough to fulfil this request"}

	_, err := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(100), BankAccountID: a.ID})
	if !apperrors.HasCode(err, http.StatusBadGateway) || !strings.Contains(err.Error(), "balance is not enough") {
		t.Fatalf("unexpected error %v", err)
	}
	if rows, _ := f.ledger.List(ctx, "u1", 10, 0); len(rows) != 1 {
		t.Errorf("no withdrawal row expected, found %d rows", len(rows))
	}
	stored, _ := f.accounts.Get(ctx, "u1", a.ID)
	if stored.RecipientCode == "" {
		t.Error("recipient code should survive an unrelated payout failure")
	}
}

func TestWithdrawalInvalidRecipientIsForgotten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")
	f.registry.CacheRecipient(ctx, a, "RCP_stale")
	f.gateway.payoutErr = &paystack.Error{Op: "initiate_payout", StatusCode: 404, Message: "Transfer recipient not found"}

	if _, err := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(100), BankAccountID: a.ID}); err == nil {
		t.Fatal("expected error")
	}
	stored, _ := f.accounts.Get(ctx, "u1", a.ID)
	if stored.RecipientCode != "" {
		t.Errorf("stale recipient code should be cleared, got %q", stored.RecipientCode)
	}

	f.gateway.payoutErr = nil
	if _, err := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(100), BankAccountID: a.ID}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.gateway.recipientCalls != 1 {
		t.Errorf("recipient should be recreated once, got %d calls", f.gateway.recipientCalls)
	}
}

func TestWithdrawalCheckStatus(t *testing.T) {
	tests := []struct {
		status     string
		want       ledger.Status
		wantTitle  string
		notePrefix string
	}{
		{paystack.TransferSuccess, ledger.Completed, "Withdrawal Completed", ""},
		{paystack.TransferFailed, ledger.Failed, "Withdrawal Failed", "Reason: Account closed"},
		{paystack.TransferReversed, ledger.Failed, "Withdrawal Failed", ""},
		{paystack.TransferRejected, ledger.Failed, "Withdrawal Failed", ""},
		{"otp", ledger.Pending, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.fund(t, "u1", 5000)
			a := f.linkAccount(t, "u1")
			res, err := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(3000), BankAccountID: a.ID})
			if err != nil {
				t.Fatal(err)
			}
			f.gateway.payoutStatus = tt.status
			if tt.notePrefix != "" {
				f.gateway.payoutReason = "Account closed"
			}

			got, err := f.withdrawals.CheckStatus(ctx, "u1", res.Reference)
			if err != nil {
				t.Fatalf("CheckStatus: %v", err)
			}
			if got.Transaction.Status != tt.want || got.GatewayStatus != tt.status {
				t.Fatalf("status = %s (%s)", got.Transaction.Status, got.GatewayStatus)
			}
			if tt.want == ledger.Completed && got.Transaction.CompletedAt == nil {
				t.Error("completed withdrawal needs a timestamp")
			}

			notes := f.notifications.ForUser("u1")
			last := notes[len(notes)-1]
			if tt.wantTitle == "" {
				if len(notes) != 1 {
					t.Errorf("pending check should not notify, got %v", notes)
				}
				return
			}
			if last.Title != tt.wantTitle || !strings.Contains(last.Message, tt.notePrefix) {
				t.Errorf("last notification = %+v", last)
			}

			f.withdrawals.CheckStatus(ctx, "u1", res.Reference)
			if f.gateway.statusCalls != 1 || len(f.notifications.ForUser("u1")) != len(notes) {
				t.Error("settled withdrawals are not re-checked or re-notified")
			}
		})
	}
}

func TestWithdrawalFailureReleasesFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")
	res, _ := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(3000), BankAccountID: a.ID})

	f.gateway.payoutStatus = paystack.TransferFailed
	f.withdrawals.CheckStatus(ctx, "u1", res.Reference)

	if avail := f.balance(t, "u1").Available(); !avail.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("available = %s, want 5000", avail)
	}
}

func TestWithdrawalCheckStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.withdrawals.CheckStatus(ctx, "u1", "NOSUCHREF1"); !apperrors.HasCode(err, http.StatusNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")
	res, _ := f.withdrawals.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(100), BankAccountID: a.ID})
	f.gateway.statusErr = &paystack.Error{Op: "payout_status", StatusCode: 500, Message: "Internal error"}

	_, err := f.withdrawals.CheckStatus(ctx, "u1", res.Reference)
	if !apperrors.HasCode(err, http.StatusBadGateway) || err.Error() != "Unable to verify transfer status" {
		t.Fatalf("unexpected error %v", err)
	}
}

// lockWatch marks when a ledger user lock is held.
type lockWatch struct {
	ledger.Store
	held atomic.Bool
}

func (l *lockWatch) WithUserLock(ctx context.Context, userID string, fn func(context.Context, ledger.Store) error) error {
	return l.Store.WithUserLock(ctx, userID, func(ctx context.Context, s ledger.Store) error {
		l.held.Store(true)
		defer l.held.Store(false)
		return fn(ctx, s)
	})
}

// accountsOutsideLock counts account calls made while the ledger lock is held.
// Under the lock the SQL store owns a pooled connection, so a second query
// through another store can starve the pool.
type accountsOutsideLock struct {
	Accounts
	lock   *lockWatch
	inLock atomic.Int32
}

func (a *accountsOutsideLock) check() {
	if a.lock.held.Load() {
		a.inLock.Add(1)
	}
}

func (a *accountsOutsideLock) Get(ctx context.Context, userID, id string) (*bankaccount.Account, error) {
	a.check()
	return a.Accounts.Get(ctx, userID, id)
}

func (a *accountsOutsideLock) CacheRecipient(ctx context.Context, acct *bankaccount.Account, code string) error {
	a.check()
	return a.Accounts.CacheRecipient(ctx, acct, code)
}

func (a *accountsOutsideLock) ForgetRecipient(ctx context.Context, acct *bankaccount.Account) error {
	a.check()
	return a.Accounts.ForgetRecipient(ctx, acct)
}

func TestWithdrawalKeepsAccountQueriesOutsideUserLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 5000)
	a := f.linkAccount(t, "u1")

	watch := &lockWatch{Store: f.ledger}
	accounts := &accountsOutsideLock{Accounts: f.registry, lock: watch}
	flow := NewWithdrawalFlow(Dependencies{
		Ledger:   watch,
		Gateway:  f.gateway,
		Users:    memory.NewUserDirectory(&user.User{ID: "u1", Email: "ada@example.com"}),
		Accounts: accounts,
		Notifier: f.notifications,
	})

	if _, err := flow.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(1000), BankAccountID: a.ID}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	f.gateway.payoutErr = &paystack.Error{Op: "transfer", StatusCode: http.StatusBadRequest, Message: "Invalid transfer recipient"}
	if _, err := flow.Initiate(ctx, WithdrawalRequest{UserID: "u1", Amount: decimal.NewFromInt(1000), BankAccountID: a.ID}); !apperrors.HasCode(err, http.StatusBadGateway) {
		t.Fatalf("expected 502, got %v", err)
	}
	if stored, _ := f.accounts.Get(ctx, "u1", a.ID); stored.RecipientCode != "" {
		t.Errorf("invalid recipient code kept: %q", stored.RecipientCode)
	}

	if n := accounts.inLock.Load(); n != 0 {
		t.Errorf("%d account calls ran while the user lock was held", n)
	}
}
