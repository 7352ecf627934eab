// Package userdir is the user directory: it stores users, resolves uids
// through an in-process cache and provisions unknown uids from an external
// directory source.
package userdir

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/prn-tf/userdir/internal/domain"
	"github.com/prn-tf/userdir/internal/lock"
	"github.com/prn-tf/userdir/internal/metrics"
	"github.com/prn-tf/userdir/internal/repository"
)

// Source fills in the attributes of a user that only has its UID set.
type Source interface {
	Populate(ctx context.Context, user *domain.User) error
}

// Config holds the dependencies of a Directory.
type Config struct {
	Repository repository.UserRepository
	Source     Source

	// Locker serialises provisioning across processes. Defaults to a no-op locker.
	Locker  lock.Locker
	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	ProvisionLockTTL        time.Duration
	ProvisionLockRetries    int
	ProvisionLockRetryDelay time.Duration
}

// Directory is safe for concurrent use.
type Directory struct {
	repo    repository.UserRepository
	source  Source
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  zerolog.Logger

	lockTTL        time.Duration
	lockRetries    int
	lockRetryDelay time.Duration

	mu    sync.RWMutex
	cache map[string]*domain.User

	inflight singleflight.Group
}

// New creates a Directory.
func New(cfg Config) (*Directory, error) {
	if cfg.Repository == nil {
		return nil, errors.New("userdir: repository is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("userdir: directory source is required")
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewNoOpLocker()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}
	if cfg.ProvisionLockTTL <= 0 {
		cfg.ProvisionLockTTL = 30 * time.Second
	}
	if cfg.ProvisionLockRetryDelay <= 0 {
		cfg.ProvisionLockRetryDelay = 100 * time.Millisecond
	}

	return &Directory{
		repo:           cfg.Repository,
		source:         cfg.Source,
		locker:         cfg.Locker,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.With().Str("component", "userdir").Logger(),
		lockTTL:        cfg.ProvisionLockTTL,
		lockRetries:    cfg.ProvisionLockRetries,
		lockRetryDelay: cfg.ProvisionLockRetryDelay,
		cache:          make(map[string]*domain.User),
	}, nil
}

// AddUser stores user and sets its ID. The user is not cached.
func (d *Directory) AddUser(ctx context.Context, user *domain.User) error {
	if user.IsPersisted() {
		return fmt.Errorf("%w: id %d", domain.ErrUserAlreadyPersisted, user.ID)
	}

	if err := d.repo.Create(ctx, user); err != nil {
		return fmt.Errorf("add user %q: %w", user.UID, err)
	}

	d.logger.Debug().Int64("id", user.ID).Str("uid", user.UID).Msg("user added")
	return nil
}

// GetUserByID loads a user from the store, bypassing the cache.
func (d *Directory) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := d.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.UserNotFound(id)
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// GetUserByUID returns the user with uid, provisioning it from the source
// when the store does not have it. Concurrent calls for the same uid share a
// single store lookup and provisioning. Failures are not cached.
func (d *Directory) GetUserByUID(ctx context.Context, uid string) (*domain.User, error) {
	if user, ok := d.cached(uid); ok {
		d.metrics.CacheHits.Inc()
		return user, nil
	}
	d.metrics.CacheMisses.Inc()

	// The shared call outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := d.inflight.DoChan(uid, func() (any, error) {
		return d.resolve(shared, uid)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.User), nil
	}
}

// ListUsers returns users matching filter, ordered by uid. include is
// accepted but currently ignored.
func (d *Directory) ListUsers(ctx context.Context, include repository.ListInclude, filter repository.UserFilter) ([]*domain.User, error) {
	users, err := d.repo.List(ctx, include, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (d *Directory) resolve(ctx context.Context, uid string) (*domain.User, error) {
	// A flight that finished between the cache check and DoChan already stored it.
	if user, ok := d.cached(uid); ok {
		return user, nil
	}

	user, err := d.repo.GetByUID(ctx, uid)
	switch {
	case err == nil:
		d.remember(uid, user)
		return user, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("get user %q: %w", uid, err)
	}

	d.logger.Debug().Str("uid", uid).Msg("uid not in store, provisioning")

	user, err = d.provision(ctx, uid)
	if err != nil {
		d.metrics.ProvisionFailures.Inc()
		d.logger.Debug().Err(err).Str("uid", uid).Msg("provisioning failed")
		return nil, err
	}

	d.remember(uid, user)
	return user, nil
}

func (d *Directory) provision(ctx context.Context, uid string) (*domain.User, error) {
	l := lock.NewLock(d.locker, lock.Keys.UserProvision(uid))
	if err := l.AcquireWithRetry(ctx, d.lockTTL, d.lockRetries, d.lockRetryDelay); err != nil {
		return nil, fmt.Errorf("provision user %q: %w", uid, err)
	}
	defer func() {
		if err := l.Release(ctx); err != nil {
			d.logger.Warn().Err(err).Str("key", l.Key()).Msg("failed to release provisioning lock")
		}
	}()

	// Another process may have created the user while we waited for the lock.
	existing, err := d.repo.GetByUID(ctx, uid)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("get user %q: %w", uid, err)
	}

	user := &domain.User{UID: uid}

	start := time.Now()
	err = d.source.Populate(ctx, user)
	d.metrics.ObserveLookup(start, err)
	if err != nil {
		return nil, fmt.Errorf("provision user %q: %w", uid, err)
	}

	if err := d.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("provision user %q: %w", uid, err)
	}

	d.metrics.Provisions.Inc()
	d.logger.Info().
		Int64("id", user.ID).
		Str("uid", user.UID).
		Str("auth_realm", user.AuthRealm.String()).
		Msg("provisioned user from directory")

	return user, nil
}

func (d *Directory) cached(uid string) (*domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.cache[uid]
	return user, ok
}

func (d *Directory) remember(uid string, user *domain.User) {
	d.mu.Lock()
	d.cache[uid] = user
	d.mu.Unlock()
}
