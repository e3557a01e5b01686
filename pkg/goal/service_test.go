package goal_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/goal"
	"money-saver/pkg/storage/memory"

	"github.com/shopspring/decimal"
)

func validInput() goal.CreateInput {
	return goal.CreateInput{
		UserID:       "u1",
		Title:        "Emergency fund",
		TargetAmount: "150000.50",
		Deadline:     "2027-01-31",
		Category:     "emergency",
		Priority:     "high",
	}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	notes := memory.NewNotificationStore()
	s := goal.NewService(memory.NewGoalStore(), notes, nil)

	g, err := s.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.ID == "" || g.Status != goal.Active || !g.Current.IsZero() {
		t.Errorf("unexpected goal %+v", g)
	}
	if !g.Target.Equal(decimal.RequireFromString("150000.50")) || g.Deadline.Format(goal.DateLayout) != "2027-01-31" {
		t.Errorf("target %s deadline %s", g.Target, g.Deadline)
	}

	sent := notes.ForUser("u1")
	if len(sent) != 1 || sent[0].Title != "New Goal Created" {
		t.Errorf("notifications = %v", sent)
	}

	got, err := s.Get(ctx, "u1", g.ID)
	if err != nil || got.Title != "Emergency fund" {
		t.Errorf("Get = %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, "u2", g.ID); !apperrors.HasCode(err, http.StatusNotFound) {
		t.Errorf("other user's goal should be not found, got %v", err)
	}
}

func TestServiceCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*goal.CreateInput)
		want   string
	}{
		{"missing title", func(in *goal.CreateInput) { in.Title = " " }, goal.ErrTitle.Error()},
		{"long title", func(in *goal.CreateInput) { in.Title = strings.Repeat("a", 101) }, goal.ErrTitle.Error()},
		{"long description", func(in *goal.CreateInput) { in.Description = strings.Repeat("a", 501) }, goal.ErrDescription.Error()},
		{"unknown category", func(in *goal.CreateInput) { in.Category = "yacht" }, goal.ErrCategory.Error()},
		{"unknown priority", func(in *goal.CreateInput) { in.Priority = "urgent" }, goal.ErrPriority.Error()},
		{"not a number", func(in *goal.CreateInput) { in.TargetAmount = "lots" }, "Invalid amount"},
		{"zero target", func(in *goal.CreateInput) { in.TargetAmount = "0" }, "Amount must be greater than zero"},
		{"below one", func(in *goal.CreateInput) { in.TargetAmount = "0.50" }, goal.ErrTarget.Error()},
		{"too large", func(in *goal.CreateInput) { in.TargetAmount = "10000000000000" }, "Amount is too large"},
		{"bad deadline", func(in *goal.CreateInput) { in.Deadline = "31/01/2027" }, goal.ErrDeadline.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewGoalStore()
			s := goal.NewService(store, nil, nil)

			in := validInput()
			tt.modify(&in)
			_, err := s.Create(context.Background(), in)
			if !apperrors.HasCode(err, http.StatusBadRequest) {
				t.Fatalf("expected bad request, got %v", err)
			}
			if err.Error() != tt.want {
				t.Errorf("message = %q, want %q", err.Error(), tt.want)
			}
			if goals, _ := store.List(context.Background(), "u1", 10, 0); len(goals) != 0 {
				t.Error("invalid goals must not be stored")
			}
		})
	}
}

func TestServiceCreateRequiresUser(t *testing.T) {
	s := goal.NewService(memory.NewGoalStore(), nil, nil)
	in := validInput()
	in.UserID = ""
	if _, err := s.Create(context.Background(), in); !apperrors.HasCode(err, http.StatusUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}
