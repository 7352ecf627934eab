package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/userdir/internal/domain"
	"github.com/prn-tf/userdir/internal/repository"
)

var dialect = repository.Dialect{
	RegexOp:     "~",
	Placeholder: repository.DollarPlaceholder,
}

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	q Querier
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{q: db.Pool}
}

// NewUserRepositoryWithQuerier creates a repository bound to q, e.g. a pgx.Tx.
func NewUserRepositoryWithQuerier(q Querier) repository.UserRepository {
	return &userRepository{q: q}
}

// Create inserts a new user. The id comes from the user_id_seq sequence.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO "user" (uid, name, email, active, admin, auth_realm)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.q.QueryRow(ctx, query,
		user.UID,
		user.Name,
		user.Email,
		user.Active,
		user.Admin,
		int16(user.AuthRealm),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: uid %q: %w", domain.ErrUserAlreadyExists, user.UID, err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + repository.UserColumns + ` FROM "user" WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, id))
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
	query := `SELECT ` + repository.UserColumns + ` FROM "user" WHERE uid = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, uid))
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
	query, args := repository.BuildListUsersQuery(dialect, filter)

	rows, err := r.q.Query(ctx, query, args...)
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

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	var realm int16

	err := row.Scan(
		&user.ID,
		&user.UID,
		&user.Name,
		&user.Email,
		&user.Active,
		&user.Admin,
		&realm,
	)
	if err != nil {
		return nil, err
	}
	user.AuthRealm = domain.AuthRealm(realm)

	return user, nil
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
