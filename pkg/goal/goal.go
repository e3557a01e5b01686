// Package goal tracks the savings targets users set for themselves.
package goal

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a goal.
type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// Priority orders goals on the dashboard.
type Priority string

const (
	Low    Priority = "low"
	Medium Priority = "medium"
	High   Priority = "high"
)

// DateLayout is the wire format of deadlines.
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when the goal does not exist or is owned by someone else.
	ErrNotFound = errors.New("goal not found")
	// ErrTitle is returned for a missing or overlong title.
	ErrTitle = errors.New("Goal title is required and must be at most 100 characters")
	// ErrDescription is returned for descriptions over 500 characters.
	ErrDescription = errors.New("Description must be at most 500 characters")
	// ErrTarget is returned for targets below one naira.
	ErrTarget = errors.New("Target amount must be at least 1")
	// ErrDeadline is returned for deadlines that are missing or not YYYY-MM-DD.
	ErrDeadline = errors.New("Deadline must be a date in YYYY-MM-DD format")
	// ErrCategory is returned for categories outside Categories.
	ErrCategory = errors.New("Invalid goal category")
	// ErrPriority is returned for priorities other than low, medium or high.
	ErrPriority = errors.New("Invalid goal priority")
)

// Categories are the accepted goal categories.
var Categories = []string{"emergency", "vacation", "car", "house", "education", "business", "wedding", "other"}

var hundred = decimal.NewFromInt(100)

// Goal is a savings target with a deadline.
type Goal struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Target      decimal.Decimal
	Current     decimal.Decimal
	Deadline    time.Time
	Status      Status
	Category    string
	Priority    Priority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Progress returns how much of the target is saved, as a percentage capped at
// 100 and rounded to two places.
func (g *Goal) Progress() decimal.Decimal {
	if !g.Target.IsPositive() {
		return decimal.Zero
	}
	p := g.Current.Div(g.Target).Mul(hundred)
	if p.GreaterThan(hundred) {
		p = hundred
	}
	return p.Round(2)
}

// DaysRemaining returns the whole days left until the deadline, never negative.
func (g *Goal) DaysRemaining(now time.Time) int {
	d := g.Deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// CreateInput is a request to set a new goal. TargetAmount and Deadline are
// kept as submitted and parsed by the service.
type CreateInput struct {
	UserID       string
	Title        string
	Description  string
	TargetAmount string
	Deadline     string
	Category     string
	Priority     string
}

// Normalize trims whitespace and lowercases the enumerated fields.
func (in CreateInput) Normalize() CreateInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.TargetAmount = strings.TrimSpace(in.TargetAmount)
	in.Deadline = strings.TrimSpace(in.Deadline)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	if in.Priority == "" {
		in.Priority = string(Medium)
	}
	return in
}

// Validate checks the text and enumerated fields. Amount and date checks
// happen while parsing.
func (in CreateInput) Validate() error {
	if in.Title == "" || utf8.RuneCountInString(in.Title) > 100 {
		return ErrTitle
	}
	if utf8.RuneCountInString(in.Description) > 500 {
		return ErrDescription
	}
	if !isCategory(in.Category) {
		return ErrCategory
	}
	switch Priority(in.Priority) {
	case Low, Medium, High:
	default:
		return ErrPriority
	}
	return nil
}

func isCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Store persists goals.
type Store interface {
	Insert(ctx context.Context, g *Goal) error
	Get(ctx context.Context, userID, id string) (*Goal, error)
	// List returns the user's goals, newest first.
	List(ctx context.Context, userID string, limit, offset int) ([]*Goal, error)
}
