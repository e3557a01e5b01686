package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"money-saver/pkg/ledger"

	"github.com/lib/pq"
)

const transactionColumns = `id, user_id, amount, type, description, category, payment_method, reference, status, created_at, completed_at`

// LedgerStore is a ledger.Store backed by the transactions table.
type LedgerStore struct {
	db *sql.DB
	q  querier
}

// NewLedgerStore creates a store on db.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db, q: db}
}

// Create implements ledger.Store.
func (s *LedgerStore) Create(ctx context.Context, t *ledger.Transaction) error {
	const query = `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.q.ExecContext(ctx, query,
		t.ID, t.UserID, t.Amount, string(t.Type), t.Description, t.Category,
		t.PaymentMethod, t.Reference, string(t.Status), t.CreatedAt, nullTime(t.CompletedAt),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return ledger.ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// FindByReference implements ledger.Store.
func (s *LedgerStore) FindByReference(ctx context.Context, userID, reference string) (*ledger.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 AND user_id = $2`

	t, err := scanTransaction(s.q.QueryRowContext(ctx, query, reference, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

// Complete implements ledger.Store.
func (s *LedgerStore) Complete(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
		UPDATE transactions SET status = 'completed', completed_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	return s.transition(ctx, "complete", query, id, at.UTC())
}

// Fail implements ledger.Store.
func (s *LedgerStore) Fail(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE transactions SET status = 'failed' WHERE id = $1 AND status = 'pending'`
	return s.transition(ctx, "fail", query, id)
}

func (s *LedgerStore) transition(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s transaction: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s transaction: %w", op, err)
	}
	return n == 1, nil
}

// Totals implements ledger.Store.
func (s *LedgerStore) Totals(ctx context.Context, userID string) (ledger.Totals, error) {
	const query = `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'deposit'    AND status = 'completed' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'withdrawal' AND status = 'completed' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'withdrawal' AND status = 'pending'   THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = $1
	`
	var t ledger.Totals
	if err := s.q.QueryRowContext(ctx, query, userID).Scan(
		&t.CompletedDeposits, &t.CompletedWithdrawals, &t.PendingWithdrawals,
	); err != nil {
		return ledger.Totals{}, fmt.Errorf("get totals: %w", err)
	}
	return t, nil
}

// Summarize implements ledger.Store.
func (s *LedgerStore) Summarize(ctx context.Context, userID string, since time.Time) (ledger.Summary, error) {
	const query = `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'deposit'    THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'withdrawal' THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE user_id = $1 AND status = 'completed' AND created_at >= $2
	`
	sum := ledger.Summary{Since: since}
	if err := s.q.QueryRowContext(ctx, query, userID, since).Scan(&sum.Deposits, &sum.Withdrawals); err != nil {
		return ledger.Summary{}, fmt.Errorf("summarize transactions: %w", err)
	}
	return sum, nil
}

// List implements ledger.Store.
func (s *LedgerStore) List(ctx context.Context, userID string, limit, offset int) ([]*ledger.Transaction, error) {
	const query = `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return s.query(ctx, "list transactions", query, userID, limit, offset)
}

// ListPending implements ledger.Store.
func (s *LedgerStore) ListPending(ctx context.Context, olderThan time.Time, after ledger.Cursor, limit int) ([]*ledger.Transaction, error) {
	const query = `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = 'pending' AND created_at < $1 AND (created_at, id) > ($2::timestamptz, $3::text)
		ORDER BY created_at, id
		LIMIT $4
	`
	return s.query(ctx, "list pending transactions", query, olderThan, after.CreatedAt, after.ID, limit)
}

func (s *LedgerStore) query(ctx context.Context, op, query string, args ...any) ([]*ledger.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// WithUserLock implements ledger.Store with a transaction-scoped advisory
// lock keyed on the user ID.
func (s *LedgerStore) WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context, s ledger.Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin user lock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}

	if err := fn(ctx, &LedgerStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user lock: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*ledger.Transaction, error) {
	var (
		t           ledger.Transaction
		typ, status string
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Amount, &typ, &t.Description, &t.Category,
		&t.PaymentMethod, &t.Reference, &status, &t.CreatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	t.Type = ledger.Type(typ)
	t.Status = ledger.Status(status)
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		t.CompletedAt = &at
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
