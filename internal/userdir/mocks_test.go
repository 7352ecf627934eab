package userdir

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/userdir/internal/domain"
	"github.com/prn-tf/userdir/internal/repository"
)

// =============================================================================
// Mock Types
// =============================================================================

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Populate(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// populateAs returns a mock Run func that fills user the way the LDAP source does.
func populateAs(name, email string, admin bool) func(mock.Arguments) {
	return func(args mock.Arguments) {
		u := args.Get(1).(*domain.User)
		u.Name = name
		u.Email = email
		u.Active = true
		u.Admin = admin
		u.AuthRealm = domain.AuthRealmLDAP
	}
}

type sourceFunc func(ctx context.Context, user *domain.User) error

func (f sourceFunc) Populate(ctx context.Context, user *domain.User) error {
	return f(ctx, user)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, include repository.ListInclude, filter repository.UserFilter) ([]*domain.User, error) {
	args := m.Called(ctx, include, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// countingRepository counts store round trips made through a real repository.
type countingRepository struct {
	repository.UserRepository

	getByUID atomic.Int64
	creates  atomic.Int64
}

func (r *countingRepository) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	r.getByUID.Add(1)
	return r.UserRepository.GetByUID(ctx, uid)
}

func (r *countingRepository) Create(ctx context.Context, user *domain.User) error {
	r.creates.Add(1)
	return r.UserRepository.Create(ctx, user)
}
