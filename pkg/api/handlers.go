package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/bankaccount"
	"money-saver/pkg/goal"
	"money-saver/pkg/ledger"
	"money-saver/pkg/payments"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

func (s *Server) handleListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.services.Directory.Banks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"banks": banks})
}

func (s *Server) handleVerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountNumber string `json:"account_number"`
		BankCode      string `json:"bank_code"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	acct, err := s.services.Directory.Resolve(r.Context(), req.AccountNumber, req.BankCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"account_name":   acct.AccountName,
		"account_number": acct.AccountNumber,
	})
}

func (s *Server) handleListBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.services.Accounts.ListVerified(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"accounts": views})
}

func (s *Server) handleAddBankAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BankName      string `json:"bank_name"`
		BankCode      string `json:"bank_code"`
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		BVN           string `json:"bvn"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := s.services.Accounts.Add(r.Context(), bankaccount.AddInput{
		UserID:        userID(r),
		BankName:      req.BankName,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BVN:           req.BVN,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Bank account added successfully", map[string]any{
		"account": newAccountView(a),
	})
}

func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount        decimal.Decimal `json:"amount"`
		BankAccountID string          `json:"bank_account_id"`
		Description   string          `json:"description"`
		Category      string          `json:"category"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.services.Deposits.Initiate(r.Context(), payments.DepositRequest{
		UserID:        userID(r),
		Amount:        req.Amount,
		BankAccountID: req.BankAccountID,
		Description:   req.Description,
		Category:      req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"authorization_url": res.AuthorizationURL,
		"reference":         res.Reference,
	})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	res, err := s.services.Deposits.Verify(r.Context(), userID(r), mux.Vars(r)["reference"])
	if err != nil {
		writeError(w, err)
		return
	}

	var message string
	switch res.Transaction.Status {
	case ledger.Completed:
		message = "Payment verified successfully"
	case ledger.Failed:
		message = "Payment failed"
	default:
		message = "Payment is still pending"
	}
	writeSuccess(w, http.StatusOK, message, map[string]any{
		"transaction": newTransactionView(res.Transaction),
	})
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount        decimal.Decimal `json:"amount"`
		BankAccountID string          `json:"bank_account_id"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.services.Withdrawals.Initiate(r.Context(), payments.WithdrawalRequest{
		UserID:        userID(r),
		Amount:        req.Amount,
		BankAccountID: req.BankAccountID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Withdrawal initiated successfully", map[string]any{
		"transfer_reference": res.Reference,
	})
}

func (s *Server) handleTransferStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.services.Withdrawals.CheckStatus(r.Context(), userID(r), mux.Vars(r)["reference"])
	if err != nil {
		writeError(w, err)
		return
	}

	transferStatus := res.GatewayStatus
	if transferStatus == "" {
		transferStatus = string(res.Transaction.Status)
	}
	writeSuccess(w, http.StatusOK, res.Reason, map[string]any{
		"transfer_status": transferStatus,
		"transaction":     newTransactionView(res.Transaction),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	totals, err := s.services.Ledger.Totals(r.Context(), userID(r))
	if err != nil {
		writeError(w, apperrors.Unexpected(apperrors.WithError(err)))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"balance":   totals.Balance().StringFixed(2),
		"available": totals.Available().StringFixed(2),
	})
}

const (
	maxPage     = 100000
	maxPageSize = 100
)

// pageParam reads ?page=, defaulting to 1 and clamping to maxPage so the row
// offset stays small.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return min(page, maxPage)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	perPage := s.config.PageSize

	rows, err := s.services.Ledger.List(r.Context(), userID(r), perPage+1, (page-1)*perPage)
	if err != nil {
		writeError(w, apperrors.Unexpected(apperrors.WithError(err)))
		return
	}
	hasNext := len(rows) > perPage
	if hasNext {
		rows = rows[:perPage]
	}

	views := make([]transactionView, 0, len(rows))
	for _, t := range rows {
		views = append(views, newTransactionView(t))
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"transactions": views,
		"page":         page,
		"per_page":     perPage,
		"has_next":     hasNext,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	since := ledger.MonthStart(s.now())
	sum, err := s.services.Ledger.Summarize(r.Context(), userID(r), since)
	if err != nil {
		writeError(w, apperrors.Unexpected(apperrors.WithError(err)))
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"since":       sum.Since,
		"deposits":    sum.Deposits.StringFixed(2),
		"withdrawals": sum.Withdrawals.StringFixed(2),
		"net":         sum.Net().StringFixed(2),
	})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	perPage := s.config.PageSize

	goals, err := s.services.Goals.List(r.Context(), userID(r), perPage+1, (page-1)*perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	hasNext := len(goals) > perPage
	if hasNext {
		goals = goals[:perPage]
	}

	now := s.now()
	views := make([]goalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, newGoalView(g, now))
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"goals":    views,
		"page":     page,
		"per_page": perPage,
		"has_next": hasNext,
	})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string      `json:"title"`
		Description  string      `json:"description"`
		TargetAmount json.Number `json:"target_amount"`
		Deadline     string      `json:"deadline"`
		Category     string      `json:"category"`
		Priority     string      `json:"priority"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	g, err := s.services.Goals.Create(r.Context(), goal.CreateInput{
		UserID:       userID(r),
		Title:        req.Title,
		Description:  req.Description,
		TargetAmount: req.TargetAmount.String(),
		Deadline:     req.Deadline,
		Category:     req.Category,
		Priority:     req.Priority,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Goal created successfully!", map[string]any{
		"goal": newGoalView(g, s.now()),
	})
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	g, err := s.services.Goals.Get(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"progress":       g.Progress().InexactFloat64(),
		"current_amount": g.Current.StringFixed(2),
		"target_amount":  g.Target.StringFixed(2),
		"days_remaining": g.DaysRemaining(s.now()),
	})
}
