package bankaccount

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the account does not exist or is owned by someone else.
	ErrNotFound = errors.New("bank account not found")
	// ErrDuplicate is returned when the user already linked the account number.
	ErrDuplicate = errors.New("This bank account is already added to your profile")
	// ErrAccountNumber is returned for account numbers that are not exactly 10 digits.
	ErrAccountNumber = errors.New("Account number must be exactly 10 digits")
	// ErrBVN is returned for a BVN that is present but not 11 digits.
	ErrBVN = errors.New("BVN must be exactly 11 digits")
)

// Account is a bank account linked to a user. RecipientCode is the
// processor's payout handle, created on the first withdrawal.
type Account struct {
	ID            string
	UserID        string
	BankName      string
	BankCode      string
	AccountNumber string
	AccountName   string
	BVN           string
	RecipientCode string
	Verified      bool
	Default       bool
	CreatedAt     time.Time
}

// Masked returns the account number with all but the last four digits hidden.
func (a *Account) Masked() string {
	n := a.AccountNumber
	if len(n) <= 4 {
		return n
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}

// MissingFieldError names a required field that was left empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return e.Field + " is required"
}

// AddInput is a request to link an account that the caller has already
// resolved against the processor.
type AddInput struct {
	UserID        string
	BankName      string
	BankCode      string
	AccountNumber string
	AccountName   string
	BVN           string
}

// Normalize trims whitespace from every field.
func (in AddInput) Normalize() AddInput {
	in.BankName = strings.TrimSpace(in.BankName)
	in.BankCode = strings.TrimSpace(in.BankCode)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.AccountName = strings.TrimSpace(in.AccountName)
	in.BVN = strings.TrimSpace(in.BVN)
	return in
}

// Validate checks required fields and number formats.
func (in AddInput) Validate() error {
	required := []struct {
		label string
		value string
	}{
		{"Account Number", in.AccountNumber},
		{"Bank Code", in.BankCode},
		{"Account Name", in.AccountName},
		{"Bank Name", in.BankName},
	}
	for _, f := range required {
		if f.value == "" {
			return &MissingFieldError{Field: f.label}
		}
	}
	if !IsAccountNumber(in.AccountNumber) {
		return ErrAccountNumber
	}
	if in.BVN != "" && !digits(in.BVN, 11) {
		return ErrBVN
	}
	return nil
}

// IsAccountNumber reports whether s is exactly 10 ASCII digits.
func IsAccountNumber(s string) bool {
	return digits(s, 10)
}

func digits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Store persists bank accounts. Insert must enforce uniqueness of
// (UserID, AccountNumber) and report violations as ErrDuplicate.
type Store interface {
	Insert(ctx context.Context, a *Account) error
	Get(ctx context.Context, userID, id string) (*Account, error)
	ListVerified(ctx context.Context, userID string) ([]*Account, error)
	SetRecipientCode(ctx context.Context, id, code string) error
}
