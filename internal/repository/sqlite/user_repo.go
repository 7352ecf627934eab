package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/userdir/internal/domain"
	"github.com/prn-tf/userdir/internal/repository"
)

var dialect = repository.Dialect{
	RegexOp:     "REGEXP",
	Placeholder: repository.QuestionPlaceholder,
}

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new user and assigns user.ID from the generated rowid.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO "user" (uid, name, email, active, admin, auth_realm)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.UID,
		user.Name,
		user.Email,
		boolToInt(user.Active),
		boolToInt(user.Admin),
		int(user.AuthRealm),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: uid %q: %w", domain.ErrUserAlreadyExists, user.UID, err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + repository.UserColumns + ` FROM "user" WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetByUID retrieves a user by its external identifier.
func (r *userRepository) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	query := `SELECT ` + repository.UserColumns + ` FROM "user" WHERE uid = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, uid))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by uid: %w", err)
	}

	return user, nil
}

// List returns users matching filter ordered by uid. include is ignored.
func (r *userRepository) List(ctx context.Context, _ repository.ListInclude, filter repository.UserFilter) ([]*domain.User, error) {
	// REGEXP only runs per row, so a bad pattern would go unreported on an
	// empty table.
	if pattern := filter[repository.FilterUID]; pattern != "" {
		if _, err := compile(pattern); err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
	}

	query, args := repository.BuildListUsersQuery(dialect, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var active, admin, realm int

	err := row.Scan(
		&user.ID,
		&user.UID,
		&user.Name,
		&user.Email,
		&active,
		&admin,
		&realm,
	)
	if err != nil {
		return nil, err
	}

	user.Active = active != 0
	user.Admin = admin != 0
	user.AuthRealm = domain.AuthRealm(realm)

	return user, nil
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
