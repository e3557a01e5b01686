// Package user is the read-only view of the user directory. Registration and
// authentication live in another service; this one only needs to know who a
// caller is and where the processor should send receipts.
package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned for unknown user IDs.
var ErrNotFound = errors.New("user not found")

// User is a registered user.
type User struct {
	ID       string
	Email    string
	FullName string
}

// Directory looks users up by ID.
type Directory interface {
	Get(ctx context.Context, id string) (*User, error)
}
