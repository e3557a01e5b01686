package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"money-saver/pkg/bankaccount"
	"money-saver/pkg/cache/mock"
	"money-saver/pkg/chain"
	"money-saver/pkg/directory"
	"money-saver/pkg/goal"
	"money-saver/pkg/ledger"
	memorycollector "money-saver/pkg/metrics/memory"
	"money-saver/pkg/payments"
	"money-saver/pkg/paystack"
	"money-saver/pkg/storage/memory"
	"money-saver/pkg/user"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stubGateway answers every processor call successfully.
type stubGateway struct {
	mu           sync.Mutex
	chargeStatus string
	payoutStatus string
}

func (g *stubGateway) Country() string { return "nigeria" }

func (g *stubGateway) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	return []paystack.Bank{{Name: "GTBank", Code: "058", Slug: "guaranty-trust-bank"}}, nil
}

func (g *stubGateway) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	return &paystack.ResolvedAccount{AccountNumber: accountNumber, AccountName: "ADA LOVELACE"}, nil
}

func (g *stubGateway) InitializeCharge(ctx context.Context, email string, amountMinor int64, reference string) (*paystack.Charge, error) {
	return &paystack.Charge{AuthorizationURL: "https://checkout.paystack.com/" + reference, Reference: reference}, nil
}

func (g *stubGateway) VerifyCharge(ctx context.Context, reference string) (*paystack.ChargeStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &paystack.ChargeStatus{Status: g.chargeStatus, Reference: reference}, nil
}

func (g *stubGateway) CreateRecipient(ctx context.Context, name, accountNumber, bankCode string) (*paystack.Recipient, error) {
	return &paystack.Recipient{Code: "RCP_" + accountNumber, Name: name}, nil
}

func (g *stubGateway) InitiatePayout(ctx context.Context, amount decimal.Decimal, recipient, reference string) (*paystack.Payout, error) {
	return &paystack.Payout{Reference: reference, TransferCode: "TRF_" + reference, Status: "pending"}, nil
}

func (g *stubGateway) PayoutStatus(ctx context.Context, code string) (*paystack.PayoutStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &paystack.PayoutStatus{Status: g.payoutStatus, Reason: "Transfer processed", Reference: code}, nil
}

type testEnv struct {
	server  *Server
	gateway *stubGateway
	ledger  *memory.LedgerStore
	metrics *memorycollector.Collector
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	c, err := chain.New(chain.Config{}, mock.NewLayer("memory"))
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	env := &testEnv{
		gateway: &stubGateway{chargeStatus: paystack.ChargeSuccess, payoutStatus: paystack.TransferSuccess},
		ledger:  memory.NewLedgerStore(),
		metrics: memorycollector.NewCollector(),
	}
	registry := bankaccount.NewRegistry(memory.NewAccountStore(), nil, nil)
	deps := payments.Dependencies{
		Ledger:   env.ledger,
		Gateway:  env.gateway,
		Users:    memory.NewUserDirectory(&user.User{ID: "u1", Email: "ada@example.com"}),
		Accounts: registry,
		Notifier: memory.NewNotificationStore(),
	}

	config := DefaultServerConfig()
	config.PageSize = 2
	env.server = NewServer(Services{
		Deposits:    payments.NewDepositFlow(deps),
		Withdrawals: payments.NewWithdrawalFlow(deps),
		Accounts:    registry,
		Directory:   directory.New(env.gateway, c, nil),
		Goals:       goal.NewService(memory.NewGoalStore(), nil, nil),
		Ledger:      env.ledger,
	}, config, env.metrics, nil)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(UserHeader, "u1")
	w := httptest.NewRecorder()

	e.server.Handler().ServeHTTP(w, req)

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return w.Code, response
}

func (e *testEnv) fund(t *testing.T, amount int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := ledger.NewPending("u1", ledger.Deposit, decimal.NewFromInt(amount), "seed-"+uuid.NewString(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.ledger.Create(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ledger.Complete(ctx, tx.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
}

func TestServer_Health(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var response map[string]any
	json.NewDecoder(w.Body).Decode(&response)
	if response["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", response["status"])
	}
}

func TestServer_RequiresUser(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestServer_DepositLifecycle(t *testing.T) {
	env := setupTestServer(t)

	code, resp := env.do(t, http.MethodPost, "/api/deposits", map[string]any{"amount": "5000"})
	if code != http.StatusOK {
		t.Fatalf("deposit: %d %v", code, resp)
	}
	ref, _ := resp["reference"].(string)
	if ref == "" || resp["authorization_url"] == "" {
		t.Fatalf("deposit response missing fields: %v", resp)
	}

	code, resp = env.do(t, http.MethodGet, "/api/balance", nil)
	if code != http.StatusOK || resp["balance"] != "0.00" {
		t.Fatalf("balance before verification = %v", resp)
	}

	code, resp = env.do(t, http.MethodPost, "/api/verify-payment/"+ref, nil)
	if code != http.StatusOK || resp["message"] != "Payment verified successfully" {
		t.Fatalf("verify: %d %v", code, resp)
	}
	tx := resp["transaction"].(map[string]any)
	if tx["status"] != "completed" || tx["amount"] != "5000.00" {
		t.Errorf("transaction = %v", tx)
	}

	_, resp = env.do(t, http.MethodGet, "/api/balance", nil)
	if resp["balance"] != "5000.00" {
		t.Errorf("balance = %v, want 5000.00", resp["balance"])
	}
}

func TestServer_DepositRejectsBadAmount(t *testing.T) {
	env := setupTestServer(t)

	for _, amount := range []any{"0", "-10", "abc"} {
		code, resp := env.do(t, http.MethodPost, "/api/deposits", map[string]any{"amount": amount})
		if code != http.StatusBadRequest || resp["status"] != "error" {
			t.Errorf("amount %v: %d %v", amount, code, resp)
		}
	}
}

func TestServer_VerifyUnknownReference(t *testing.T) {
	env := setupTestServer(t)

	code, resp := env.do(t, http.MethodPost, "/api/verify-payment/nope", nil)
	if code != http.StatusNotFound || resp["message"] != "Transaction not found" {
		t.Errorf("got %d %v", code, resp)
	}
}

func TestServer_WithdrawalLifecycle(t *testing.T) {
	env := setupTestServer(t)
	env.fund(t, 5000)

	code, resp := env.do(t, http.MethodPost, "/api/bank-accounts", map[string]any{
		"bank_name":      "GTBank",
		"bank_code":      "058",
		"account_number": "0123456789",
		"account_name":   "ADA LOVELACE",
	})
	if code != http.StatusCreated {
		t.Fatalf("add account: %d %v", code, resp)
	}
	accountID := resp["account"].(map[string]any)["id"].(string)

	code, resp = env.do(t, http.MethodPost, "/api/bank-accounts", map[string]any{
		"bank_name":      "GTBank",
		"bank_code":      "058",
		"account_number": "0123456789",
		"account_name":   "ADA LOVELACE",
	})
	if code != http.StatusConflict {
		t.Errorf("duplicate account: %d %v", code, resp)
	}

	code, resp = env.do(t, http.MethodPost, "/api/withdrawals", map[string]any{"amount": "6000", "bank_account_id": accountID})
	if code != http.StatusBadRequest || resp["message"] != "Insufficient balance" {
		t.Errorf("overdraw: %d %v", code, resp)
	}

	code, resp = env.do(t, http.MethodPost, "/api/withdrawals", map[string]any{"amount": "3000", "bank_account_id": accountID})
	if code != http.StatusOK || resp["message"] != "Withdrawal initiated successfully" {
		t.Fatalf("withdraw: %d %v", code, resp)
	}
	ref := resp["transfer_reference"].(string)

	_, resp = env.do(t, http.MethodGet, "/api/balance", nil)
	if resp["balance"] != "5000.00" || resp["available"] != "2000.00" {
		t.Errorf("balance while pending = %v", resp)
	}

	code, resp = env.do(t, http.MethodGet, "/api/transfer-status/"+ref, nil)
	if code != http.StatusOK || resp["transfer_status"] != "success" {
		t.Fatalf("transfer status: %d %v", code, resp)
	}

	_, resp = env.do(t, http.MethodGet, "/api/balance", nil)
	if resp["balance"] != "2000.00" {
		t.Errorf("balance after payout = %v", resp["balance"])
	}
}

func TestServer_BanksAndVerifyAccount(t *testing.T) {
	env := setupTestServer(t)

	code, resp := env.do(t, http.MethodGet, "/api/banks", nil)
	if code != http.StatusOK || len(resp["banks"].([]any)) != 1 {
		t.Errorf("banks: %d %v", code, resp)
	}

	code, resp = env.do(t, http.MethodPost, "/api/verify-account", map[string]any{"account_number": "0123456789", "bank_code": "058"})
	if code != http.StatusOK || resp["account_name"] != "ADA LOVELACE" {
		t.Errorf("verify account: %d %v", code, resp)
	}

	code, _ = env.do(t, http.MethodPost, "/api/verify-account", map[string]any{"account_number": "123", "bank_code": "058"})
	if code != http.StatusBadRequest {
		t.Errorf("short account number: got %d", code)
	}
}

func TestServer_TransactionsPaging(t *testing.T) {
	env := setupTestServer(t)
	for i := 0; i < 3; i++ {
		env.fund(t, 100)
	}

	_, resp := env.do(t, http.MethodGet, "/api/transactions", nil)
	if len(resp["transactions"].([]any)) != 2 || resp["has_next"] != true {
		t.Errorf("page 1 = %v", resp)
	}

	_, resp = env.do(t, http.MethodGet, "/api/transactions?page=2", nil)
	if len(resp["transactions"].([]any)) != 1 || resp["has_next"] != false {
		t.Errorf("page 2 = %v", resp)
	}

	_, resp = env.do(t, http.MethodGet, "/api/transactions/summary", nil)
	if resp["deposits"] != "300.00" || resp["net"] != "300.00" {
		t.Errorf("summary = %v", resp)
	}
}

func TestServer_PageIsClamped(t *testing.T) {
	env := setupTestServer(t)
	env.fund(t, 100)

	for _, page := range []string{"99999999999999999", "9223372036854775807"} {
		code, resp := env.do(t, http.MethodGet, "/api/transactions?page="+page, nil)
		if code != http.StatusOK {
			t.Fatalf("page %s: status %d (%v)", page, code, resp)
		}
		if len(resp["transactions"].([]any)) != 0 || resp["page"] != float64(maxPage) {
			t.Errorf("page %s = %v", page, resp)
		}
	}

	_, resp := env.do(t, http.MethodGet, "/api/transactions?page=92233720368547758080", nil)
	if resp["page"] != float64(1) || len(resp["transactions"].([]any)) != 1 {
		t.Errorf("unparseable page should fall back to 1, got %v", resp)
	}

	code, _ := env.do(t, http.MethodGet, "/api/goals?page=99999999999999999", nil)
	if code != http.StatusOK {
		t.Errorf("goals status = %d", code)
	}
}

func TestServer_PageSizeIsCapped(t *testing.T) {
	s := NewServer(Services{}, ServerConfig{PageSize: 1 << 40}, nil, nil)
	if s.config.PageSize != maxPageSize {
		t.Errorf("PageSize = %d, want %d", s.config.PageSize, maxPageSize)
	}
}

func TestServer_GoalLifecycle(t *testing.T) {
	env := setupTestServer(t)
	env.server.now = func() time.Time { return time.Date(2027, 1, 21, 8, 0, 0, 0, time.UTC) }

	code, resp := env.do(t, http.MethodPost, "/api/goals", map[string]any{
		"title":         "New car",
		"target_amount": "2500000",
		"deadline":      "2027-01-31",
		"category":      "car",
	})
	if code != http.StatusCreated {
		t.Fatalf("create status %d: %v", code, resp)
	}
	created := resp["goal"].(map[string]any)
	if created["priority"] != "medium" || created["status"] != "active" || created["target_amount"] != "2500000.00" {
		t.Errorf("created goal = %v", created)
	}
	if created["days_remaining"] != float64(9) {
		t.Errorf("days_remaining = %v", created["days_remaining"])
	}

	code, resp = env.do(t, http.MethodPost, "/api/goals", map[string]any{
		"title":         "Bad",
		"target_amount": 10000000000000,
		"deadline":      "2027-01-31",
		"category":      "car",
	})
	if code != http.StatusBadRequest || resp["message"] != "Amount is too large" {
		t.Errorf("oversized target = %d %v", code, resp)
	}

	id := created["id"].(string)
	code, resp = env.do(t, http.MethodGet, "/api/goals/"+id+"/progress", nil)
	if code != http.StatusOK || resp["progress"] != float64(0) || resp["target_amount"] != "2500000.00" {
		t.Errorf("progress = %d %v", code, resp)
	}

	code, _ = env.do(t, http.MethodGet, "/api/goals/missing/progress", nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown goal status = %d", code)
	}

	_, resp = env.do(t, http.MethodGet, "/api/goals", nil)
	if goals := resp["goals"].([]any); len(goals) != 1 || resp["has_next"] != false {
		t.Errorf("goals = %v", resp)
	}
}

func TestServer_RecordsRouteTemplates(t *testing.T) {
	env := setupTestServer(t)

	env.do(t, http.MethodPost, "/api/verify-payment/abc", nil)
	env.do(t, http.MethodPost, "/api/verify-payment/def", nil)

	if got := env.metrics.HTTPRequests(http.MethodPost, "/api/verify-payment/{reference}", http.StatusNotFound); got != 2 {
		t.Errorf("HTTPRequests = %d, want 2", got)
	}
}
