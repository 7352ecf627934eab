// Package repository defines data access interfaces for the user directory.
// These interfaces abstract database operations, allowing the PostgreSQL and
// embedded SQLite stores to be swapped without changing the directory logic.
package repository

import (
	"context"

	"github.com/prn-tf/userdir/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create inserts a new user and sets user.ID from the store's generated value.
	// Store errors, including uniqueness violations on uid, are returned to the caller.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns domain.ErrUserNotFound if no row matches.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUID retrieves a user by its external identifier.
	// Returns domain.ErrUserNotFound if no row matches.
	GetByUID(ctx context.Context, uid string) (*domain.User, error)

	// List returns users matching filter, ordered by uid.
	List(ctx context.Context, include ListInclude, filter UserFilter) ([]*domain.User, error)
}

// =============================================================================
// Listing
// =============================================================================

// FilterUID is the filter field matched as a regular expression against uid.
const FilterUID = "uid"

// UserFilter maps a field name to the value it is matched against.
// Unknown fields and empty values are ignored.
type UserFilter map[string]string

// ListInclude names related data to load alongside listed users.
// It is accepted for API compatibility and currently has no effect.
type ListInclude []string

// =============================================================================
// Database health
// =============================================================================

// DatabaseHealth is implemented by the store connections.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
