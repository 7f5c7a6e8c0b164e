package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

var (
	// ErrDuplicateUsername is returned when an insert violates username uniqueness.
	ErrDuplicateUsername = errors.New("duplicate username")
	// ErrDuplicateEmail is returned when an insert violates email uniqueness.
	ErrDuplicateEmail = errors.New("duplicate email")
)

const uniqueViolation = "23505"

// translateUserConstraint maps Postgres unique violations on the users table
// to store errors. Other errors are returned unchanged.
func translateUserConstraint(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "users_username_key":
		return ErrDuplicateUsername
	case "users_email_key":
		return ErrDuplicateEmail
	default:
		return err
	}
}
