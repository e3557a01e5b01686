package ledger

import (
	"context"
	"time"
)

// Store persists transactions. Implementations must make Complete and Fail
// conditional on the row still being pending, so that each transition is
// applied at most once no matter how many verifications race.
type Store interface {
	// Create inserts t. A taken reference yields ErrDuplicateReference.
	Create(ctx context.Context, t *Transaction) error

	// FindByReference returns the caller's transaction with reference, or ErrNotFound.
	FindByReference(ctx context.Context, userID, reference string) (*Transaction, error)

	// Complete moves a pending transaction to completed and stamps at.
	// It reports false when the transaction was no longer pending.
	Complete(ctx context.Context, id string, at time.Time) (bool, error)

	// Fail moves a pending transaction to failed. It reports false when the
	// transaction was no longer pending.
	Fail(ctx context.Context, id string) (bool, error)

	// Totals aggregates the user's ledger.
	Totals(ctx context.Context, userID string) (Totals, error)

	// Summarize sums completed rows created at or after since.
	Summarize(ctx context.Context, userID string, since time.Time) (Summary, error)

	// List returns the user's transactions, newest first.
	List(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error)

	// ListPending returns pending transactions created before olderThan that
	// sort after the cursor, ordered by creation time then ID. The zero
	// Cursor starts from the oldest row.
	ListPending(ctx context.Context, olderThan time.Time, after Cursor, limit int) ([]*Transaction, error)

	// WithUserLock runs fn while holding an exclusive per-user lock. Stores
	// handed to fn see and write under the same lock; writes made through
	// them commit only if fn returns nil. A SQL store pins one pooled
	// connection until fn returns, so fn must not query the database through
	// any other store.
	WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context, s Store) error) error
}

// Cursor is a position in the (CreatedAt, ID) order of pending transactions.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf returns the position of t.
func CursorOf(t *Transaction) Cursor {
	return Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
}

// IsZero reports whether c is the start position.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// Covers reports whether t sorts at or before c.
func (c Cursor) Covers(t *Transaction) bool {
	if t.CreatedAt.Equal(c.CreatedAt) {
		return t.ID <= c.ID
	}
	return t.CreatedAt.Before(c.CreatedAt)
}
