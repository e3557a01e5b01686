package memory

import (
	"context"
	"sort"
	"sync"

	"money-saver/pkg/goal"
)

// GoalStore is an in-memory goal.Store.
type GoalStore struct {
	mu    sync.RWMutex
	goals map[string]*goal.Goal
}

// NewGoalStore creates an empty store.
func NewGoalStore() *GoalStore {
	return &GoalStore{goals: make(map[string]*goal.Goal)}
}

// Insert implements goal.Store.
func (s *GoalStore) Insert(ctx context.Context, g *goal.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *g
	s.goals[g.ID] = &c
	return nil
}

// Get implements goal.Store.
func (s *GoalStore) Get(ctx context.Context, userID, id string) (*goal.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return nil, goal.ErrNotFound
	}
	c := *g
	return &c, nil
}

// List implements goal.Store.
func (s *GoalStore) List(ctx context.Context, userID string, limit, offset int) ([]*goal.Goal, error) {
	s.mu.RLock()
	var out []*goal.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			c := *g
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}
