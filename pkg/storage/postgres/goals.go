package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"money-saver/pkg/goal"
)

const goalColumns = `id, user_id, title, description, target_amount, current_amount, deadline, status, category, priority, created_at, updated_at`

// GoalStore is a goal.Store backed by the goals table.
type GoalStore struct {
	db *sql.DB
}

// NewGoalStore creates a store on db.
func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

// Insert implements goal.Store.
func (s *GoalStore) Insert(ctx context.Context, g *goal.Goal) error {
	const query = `
		INSERT INTO goals (` + goalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := s.db.ExecContext(ctx, query,
		g.ID, g.UserID, g.Title, g.Description, g.Target, g.Current, g.Deadline,
		string(g.Status), g.Category, string(g.Priority), g.CreatedAt, g.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// Get implements goal.Store.
func (s *GoalStore) Get(ctx context.Context, userID, id string) (*goal.Goal, error) {
	const query = `SELECT ` + goalColumns + ` FROM goals WHERE id = $1 AND user_id = $2`

	g, err := scanGoal(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// List implements goal.Store.
func (s *GoalStore) List(ctx context.Context, userID string, limit, offset int) ([]*goal.Goal, error) {
	const query = `
		SELECT ` + goalColumns + ` FROM goals
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []*goal.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("list goals: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGoal(row scanner) (*goal.Goal, error) {
	var (
		g                goal.Goal
		status, priority string
	)
	if err := row.Scan(
		&g.ID, &g.UserID, &g.Title, &g.Description, &g.Target, &g.Current, &g.Deadline,
		&status, &g.Category, &priority, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Status = goal.Status(status)
	g.Priority = goal.Priority(priority)
	return &g, nil
}
