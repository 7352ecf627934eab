package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound indicates no user matches the requested identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same uid is already stored.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserAlreadyPersisted indicates an insert was attempted for a user that already has an ID.
	ErrUserAlreadyPersisted = errors.New("user already has an id")

	// ErrInvalidAuthRealm indicates an unrecognised auth realm name.
	ErrInvalidAuthRealm = errors.New("invalid auth realm")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g. a user id or uid).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// UserNotFound returns the error reported when no user has the given id.
func UserNotFound(id int64) error {
	return NewDomainError(ErrUserNotFound, "user does not exist", fmt.Sprintf("id=%d", id))
}
