package api

import (
	"encoding/json"
	"net/http"
	"time"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/bankaccount"
	"money-saver/pkg/goal"
	"money-saver/pkg/ledger"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes the success envelope with fields merged in.
func writeSuccess(w http.ResponseWriter, status int, message string, fields map[string]any) {
	body := map[string]any{"status": "success"}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError writes the error envelope. Unexpected errors never leak their cause.
func writeError(w http.ResponseWriter, err error) {
	ex := apperrors.As(err)
	writeJSON(w, ex.Code, map[string]any{
		"status":  "error",
		"message": ex.Message,
	})
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.BadRequest(apperrors.WithMessage("Invalid request body"), apperrors.WithError(err))
	}
	return nil
}

type transactionView struct {
	ID            string     `json:"id"`
	Amount        string     `json:"amount"`
	Type          string     `json:"type"`
	Description   string     `json:"description"`
	Category      string     `json:"category,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Reference     string     `json:"reference"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func newTransactionView(t *ledger.Transaction) transactionView {
	return transactionView{
		ID:            t.ID,
		Amount:        t.Amount.StringFixed(2),
		Type:          string(t.Type),
		Description:   t.Description,
		Category:      t.Category,
		PaymentMethod: t.PaymentMethod,
		Reference:     t.Reference,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

type accountView struct {
	ID            string    `json:"id"`
	BankName      string    `json:"bank_name"`
	BankCode      string    `json:"bank_code"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	Verified      bool      `json:"is_verified"`
	Default       bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}

func newAccountView(a *bankaccount.Account) accountView {
	return accountView{
		ID:            a.ID,
		BankName:      a.BankName,
		BankCode:      a.BankCode,
		AccountNumber: a.AccountNumber,
		AccountName:   a.AccountName,
		Verified:      a.Verified,
		Default:       a.Default,
		CreatedAt:     a.CreatedAt,
	}
}

type goalView struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	TargetAmount  string  `json:"target_amount"`
	CurrentAmount string  `json:"current_amount"`
	Progress      float64 `json:"progress"`
	DaysRemaining int     `json:"days_remaining"`
	Status        string  `json:"status"`
	Category      string  `json:"category"`
	Priority      string  `json:"priority"`
	Deadline      string  `json:"deadline"`
	CreatedAt     string  `json:"created_at"`
}

func newGoalView(g *goal.Goal, now time.Time) goalView {
	return goalView{
		ID:            g.ID,
		Title:         g.Title,
		Description:   g.Description,
		TargetAmount:  g.Target.StringFixed(2),
		CurrentAmount: g.Current.StringFixed(2),
		Progress:      g.Progress().InexactFloat64(),
		DaysRemaining: g.DaysRemaining(now),
		Status:        string(g.Status),
		Category:      g.Category,
		Priority:      string(g.Priority),
		Deadline:      g.Deadline.Format(goal.DateLayout),
		CreatedAt:     g.CreatedAt.Format(goal.DateLayout),
	}
}
