package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"money-saver/pkg/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind is the visual severity of a notification.
type Kind string

const (
	Info    Kind = "info"
	Success Kind = "success"
	Warning Kind = "warning"
	Error   Kind = "error"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"type"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// New builds an unread notification.
func New(userID, title, message string, kind Kind) *Notification {
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier delivers a notification somewhere.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n *Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}

// Fanout delivers to a primary notifier, which must succeed, and then to any
// number of secondary ones whose failures are only logged.
type Fanout struct {
	primary   Notifier
	secondary []Notifier
	logger    *logging.Logger
}

// NewFanout creates a Fanout. primary is usually the notification store.
func NewFanout(logger *logging.Logger, primary Notifier, secondary ...Notifier) *Fanout {
	return &Fanout{
		primary:   primary,
		secondary: secondary,
		logger:    logging.OrNoOp(logger).Named("notify"),
	}
}

// Notify implements Notifier.
func (f *Fanout) Notify(ctx context.Context, n *Notification) error {
	if err := f.primary.Notify(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	var errs []error
	for _, s := range f.secondary {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		f.logger.Warn("secondary notification delivery failed",
			logging.UserID(n.UserID),
			zap.String("title", n.Title),
			zap.Error(err),
		)
	}
	return nil
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, *Notification) error { return nil })
