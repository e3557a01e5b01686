package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/bankaccount"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation     pq.ErrorCode = "23505"
	codeForeignKeyViolation pq.ErrorCode = "23503"
	codeNotNullViolation    pq.ErrorCode = "23502"
)

const accountColumns = `id, user_id, bank_name, bank_code, account_number, account_name, bvn, recipient_code, is_verified, is_default, created_at`

// AccountStore is a bankaccount.Store backed by the bank_accounts table.
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore creates a store on db.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// Insert implements bankaccount.Store. Constraint violations come back as
// *apperrors.Exception carrying a message fit for the user.
func (s *AccountStore) Insert(ctx context.Context, a *bankaccount.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert bank account: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO bank_accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := tx.ExecContext(ctx, query,
		a.ID, a.UserID, a.BankName, a.BankCode, a.AccountNumber, a.AccountName,
		a.BVN, a.RecipientCode, a.Verified, a.Default, a.CreatedAt,
	); err != nil {
		return accountError(err)
	}
	return tx.Commit()
}

// accountError translates constraint violations on bank_accounts.
func accountError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("insert bank account: %w", err)
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		return apperrors.Conflict(
			apperrors.WithMessage("This bank account already exists in your profile"),
			apperrors.WithError(fmt.Errorf("%w: %v", bankaccount.ErrDuplicate, pqErr)),
		)
	case codeForeignKeyViolation:
		return apperrors.BadRequest(
			apperrors.WithMessage("Invalid user or bank information provided"),
			apperrors.WithError(pqErr),
		)
	case codeNotNullViolation:
		return apperrors.BadRequest(
			apperrors.WithMessage("Missing required information. Please fill all required fields."),
			apperrors.WithError(pqErr),
		)
	default:
		return apperrors.Unexpected(
			apperrors.WithMessage("An error occurred while saving your bank account. Please try again."),
			apperrors.WithError(pqErr),
		)
	}
}

// Get implements bankaccount.Store.
func (s *AccountStore) Get(ctx context.Context, userID, id string) (*bankaccount.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM bank_accounts WHERE id = $1 AND user_id = $2`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, bankaccount.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bank account: %w", err)
	}
	return a, nil
}

// ListVerified implements bankaccount.Store.
func (s *AccountStore) ListVerified(ctx context.Context, userID string) ([]*bankaccount.Account, error) {
	const query = `
		SELECT ` + accountColumns + ` FROM bank_accounts
		WHERE user_id = $1 AND is_verified = TRUE
		ORDER BY is_default DESC, created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	defer rows.Close()

	var out []*bankaccount.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list bank accounts: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetRecipientCode implements bankaccount.Store.
func (s *AccountStore) SetRecipientCode(ctx context.Context, id, code string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bank_accounts SET recipient_code = $2 WHERE id = $1`, id, code)
	if err != nil {
		return fmt.Errorf("set recipient code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bankaccount.ErrNotFound
	}
	return nil
}

func scanAccount(row scanner) (*bankaccount.Account, error) {
	var a bankaccount.Account
	if err := row.Scan(
		&a.ID, &a.UserID, &a.BankName, &a.BankCode, &a.AccountNumber, &a.AccountName,
		&a.BVN, &a.RecipientCode, &a.Verified, &a.Default, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
