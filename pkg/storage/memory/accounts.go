package memory

import (
	"context"
	"sort"
	"sync"

	"money-saver/pkg/bankaccount"
	"money-saver/pkg/notify"
	"money-saver/pkg/user"
)

// AccountStore is an in-memory bankaccount.Store.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*bankaccount.Account
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*bankaccount.Account)}
}

// Insert implements bankaccount.Store.
func (s *AccountStore) Insert(ctx context.Context, a *bankaccount.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.UserID == a.UserID && existing.AccountNumber == a.AccountNumber {
			return bankaccount.ErrDuplicate
		}
	}
	c := *a
	s.accounts[a.ID] = &c
	return nil
}

// Get implements bankaccount.Store.
func (s *AccountStore) Get(ctx context.Context, userID, id string) (*bankaccount.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return nil, bankaccount.ErrNotFound
	}
	c := *a
	return &c, nil
}

// ListVerified implements bankaccount.Store. Default accounts come first,
// then the newest.
func (s *AccountStore) ListVerified(ctx context.Context, userID string) ([]*bankaccount.Account, error) {
	s.mu.RLock()
	var out []*bankaccount.Account
	for _, a := range s.accounts {
		if a.UserID == userID && a.Verified {
			c := *a
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Default != out[j].Default {
			return out[i].Default
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SetRecipientCode implements bankaccount.Store.
func (s *AccountStore) SetRecipientCode(ctx context.Context, id, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return bankaccount.ErrNotFound
	}
	a.RecipientCode = code
	return nil
}

// NotificationStore records notifications in memory.
type NotificationStore struct {
	mu    sync.RWMutex
	items []*notify.Notification
}

// NewNotificationStore creates an empty store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

// Notify implements notify.Notifier.
func (s *NotificationStore) Notify(ctx context.Context, n *notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.items = append(s.items, &c)
	return nil
}

// ForUser returns the user's notifications in the order they were recorded.
func (s *NotificationStore) ForUser(userID string) []*notify.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*notify.Notification
	for _, n := range s.items {
		if n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	return out
}

// UserDirectory is an in-memory user.Directory.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

// NewUserDirectory creates a directory holding users.
func NewUserDirectory(users ...*user.User) *UserDirectory {
	d := &UserDirectory{users: make(map[string]*user.User)}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

// Put adds or replaces u.
func (d *UserDirectory) Put(u *user.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := *u
	d.users[u.ID] = &c
}

// Get implements user.Directory.
func (d *UserDirectory) Get(ctx context.Context, id string) (*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	c := *u
	return &c, nil
}
