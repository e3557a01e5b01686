// Package memory provides in-process implementations of the storage
// interfaces. They back the flows in tests and in single-node deployments
// without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"money-saver/pkg/ledger"

	"github.com/shopspring/decimal"
)

// LedgerStore is an in-memory ledger.Store. Per-user locks are plain
// mutexes; WithUserLock undoes the creates made by fn when fn fails.
type LedgerStore struct {
	mu    sync.RWMutex
	byID  map[string]*ledger.Transaction
	byRef map[string]string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewLedgerStore creates an empty store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		byID:  make(map[string]*ledger.Transaction),
		byRef: make(map[string]string),
		locks: make(map[string]*sync.Mutex),
	}
}

// Create implements ledger.Store.
func (s *LedgerStore) Create(ctx context.Context, t *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRef[t.Reference]; ok {
		return ledger.ErrDuplicateReference
	}
	c := clone(t)
	s.byID[c.ID] = c
	s.byRef[c.Reference] = c.ID
	return nil
}

// FindByReference implements ledger.Store.
func (s *LedgerStore) FindByReference(ctx context.Context, userID, reference string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRef[reference]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	t := s.byID[id]
	if t.UserID != userID {
		return nil, ledger.ErrNotFound
	}
	return clone(t), nil
}

// Complete implements ledger.Store.
func (s *LedgerStore) Complete(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return false, ledger.ErrNotFound
	}
	if t.Status != ledger.Pending {
		return false, nil
	}
	at = at.UTC()
	t.Status = ledger.Completed
	t.CompletedAt = &at
	return true, nil
}

// Fail implements ledger.Store.
func (s *LedgerStore) Fail(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return false, ledger.ErrNotFound
	}
	if t.Status != ledger.Pending {
		return false, nil
	}
	t.Status = ledger.Failed
	return true, nil
}

// Totals implements ledger.Store.
func (s *LedgerStore) Totals(ctx context.Context, userID string) (ledger.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := ledger.Totals{
		CompletedDeposits:    decimal.Zero,
		CompletedWithdrawals: decimal.Zero,
		PendingWithdrawals:   decimal.Zero,
	}
	for _, t := range s.byID {
		if t.UserID != userID {
			continue
		}
		switch {
		case t.Type == ledger.Deposit && t.Status == ledger.Completed:
			totals.CompletedDeposits = totals.CompletedDeposits.Add(t.Amount)
		case t.Type == ledger.Withdrawal && t.Status == ledger.Completed:
			totals.CompletedWithdrawals = totals.CompletedWithdrawals.Add(t.Amount)
		case t.Type == ledger.Withdrawal && t.Status == ledger.Pending:
			totals.PendingWithdrawals = totals.PendingWithdrawals.Add(t.Amount)
		}
	}
	return totals, nil
}

// Summarize implements ledger.Store.
func (s *LedgerStore) Summarize(ctx context.Context, userID string, since time.Time) (ledger.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := ledger.Summary{Since: since, Deposits: decimal.Zero, Withdrawals: decimal.Zero}
	for _, t := range s.byID {
		if t.UserID != userID || t.Status != ledger.Completed || t.CreatedAt.Before(since) {
			continue
		}
		if t.Type == ledger.Deposit {
			sum.Deposits = sum.Deposits.Add(t.Amount)
		} else {
			sum.Withdrawals = sum.Withdrawals.Add(t.Amount)
		}
	}
	return sum, nil
}

// List implements ledger.Store.
func (s *LedgerStore) List(ctx context.Context, userID string, limit, offset int) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	var rows []*ledger.Transaction
	for _, t := range s.byID {
		if t.UserID == userID {
			rows = append(rows, clone(t))
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return page(rows, limit, offset), nil
}

// ListPending implements ledger.Store.
func (s *LedgerStore) ListPending(ctx context.Context, olderThan time.Time, after ledger.Cursor, limit int) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	var rows []*ledger.Transaction
	for _, t := range s.byID {
		if t.Status != ledger.Pending || !t.CreatedAt.Before(olderThan) {
			continue
		}
		if !after.IsZero() && after.Covers(t) {
			continue
		}
		rows = append(rows, clone(t))
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return page(rows, limit, 0), nil
}

// WithUserLock implements ledger.Store.
func (s *LedgerStore) WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context, s ledger.Store) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &lockedLedger{LedgerStore: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *LedgerStore) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// lockedLedger is the view handed to WithUserLock callbacks. It tracks
// created rows so they can be removed if the callback fails.
type lockedLedger struct {
	*LedgerStore
	created []string
}

func (l *lockedLedger) Create(ctx context.Context, t *ledger.Transaction) error {
	if err := l.LedgerStore.Create(ctx, t); err != nil {
		return err
	}
	l.created = append(l.created, t.ID)
	return nil
}

// WithUserLock runs fn directly; the lock is already held.
func (l *lockedLedger) WithUserLock(ctx context.Context, userID string, fn func(ctx context.Context, s ledger.Store) error) error {
	return fn(ctx, l)
}

func (l *lockedLedger) rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.created {
		if t, ok := l.byID[id]; ok {
			delete(l.byRef, t.Reference)
			delete(l.byID, id)
		}
	}
}

func clone(t *ledger.Transaction) *ledger.Transaction {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func page[T any](rows []T, limit, offset int) []T {
	if offset < 0 || offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
