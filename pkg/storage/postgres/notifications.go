package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"money-saver/pkg/notify"
	"money-saver/pkg/user"
)

// NotificationStore records notifications; it is the primary notifier.
type NotificationStore struct {
	db *sql.DB
}

// NewNotificationStore creates a store on db.
func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Notify implements notify.Notifier.
func (s *NotificationStore) Notify(ctx context.Context, n *notify.Notification) error {
	const query = `
		INSERT INTO notifications (id, user_id, title, message, type, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, string(n.Kind), n.Read, n.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// UserDirectory is a user.Directory over the users table.
type UserDirectory struct {
	db *sql.DB
}

// NewUserDirectory creates a directory on db.
func NewUserDirectory(db *sql.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// Get implements user.Directory.
func (d *UserDirectory) Get(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := d.db.QueryRowContext(ctx, `SELECT id, email, full_name FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
