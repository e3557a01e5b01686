package goal

import (
	"context"
	"errors"
	"time"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/logging"
	"money-saver/pkg/money"
	"money-saver/pkg/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var minTarget = decimal.NewFromInt(1)

// Service creates and reads savings goals.
type Service struct {
	store    Store
	notifier notify.Notifier
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a Service. A nil notifier discards notifications.
func NewService(store Store, notifier notify.Notifier, logger *logging.Logger) *Service {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logging.OrNoOp(logger).Named("goal"),
		now:      time.Now,
	}
}

// Create validates in and stores an active goal with nothing saved yet.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Goal, error) {
	if in.UserID == "" {
		return nil, apperrors.Unauthorized()
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, badRequest(err)
	}

	target, err := money.Parse(in.TargetAmount)
	if err != nil {
		return nil, badRequest(err)
	}
	if err := money.Validate(target); err != nil {
		return nil, badRequest(err)
	}
	if target.LessThan(minTarget) {
		return nil, badRequest(ErrTarget)
	}

	deadline, err := time.Parse(DateLayout, in.Deadline)
	if err != nil {
		return nil, badRequest(ErrDeadline)
	}

	now := s.now().UTC()
	g := &Goal{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		Target:      target,
		Current:     decimal.Zero,
		Deadline:    deadline,
		Status:      Active,
		Category:    in.Category,
		Priority:    Priority(in.Priority),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, g); err != nil {
		return nil, apperrors.Unexpected(
			apperrors.WithMessage("An error occurred while saving your goal. Please try again."),
			apperrors.WithError(err),
		)
	}

	s.logger.Info("goal created",
		logging.UserID(g.UserID),
		zap.String("goal_id", g.ID),
		zap.String("target", target.StringFixed(2)),
	)
	if err := s.notifier.Notify(ctx, notify.GoalCreated(g.UserID, g.Title)); err != nil {
		s.logger.Warn("goal notification failed", logging.UserID(g.UserID), zap.Error(err))
	}
	return g, nil
}

// List returns a page of the user's goals, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Goal, error) {
	goals, err := s.store.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	return goals, nil
}

// Get returns the user's goal with id. Goals owned by someone else are
// reported exactly like missing ones.
func (s *Service) Get(ctx context.Context, userID, id string) (*Goal, error) {
	g, err := s.store.Get(ctx, userID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.WithMessage("Goal not found"), apperrors.WithError(err))
	}
	if err != nil {
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	return g, nil
}

func badRequest(err error) error {
	return apperrors.BadRequest(apperrors.WithMessage(err.Error()), apperrors.WithError(err))
}
