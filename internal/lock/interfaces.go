// Package lock serialises lazy provisioning of a uid. A single process can
// use the memory or no-op locker; processes sharing one store need the
// Redis locker.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired means every acquisition attempt found the key taken.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker grants exclusive, expiring ownership of string keys.
//
// The boolean results report the outcome (acquired, released, extended,
// held); errors are reserved for backend or context failures.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry makes up to maxRetries+1 attempts, retryDelay apart.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release gives up a key held by this locker. Releasing a key owned by
	// someone else, or already expired, reports false.
	Release(ctx context.Context, key string) (bool, error)

	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Lock tracks one key taken through a Locker.
type Lock struct {
	locker Locker
	key    string
	held   bool
}

func NewLock(locker Locker, key string) *Lock {
	return &Lock{locker: locker, key: key}
}

func (l *Lock) Key() string { return l.key }

// IsHeld reports whether this Lock acquired the key and has not released it.
func (l *Lock) IsHeld() bool { return l.held }

// AcquireWithRetry returns ErrNotAcquired when every attempt found the key taken.
func (l *Lock) AcquireWithRetry(ctx context.Context, ttl time.Duration, maxRetries int, retryDelay time.Duration) error {
	ok, err := l.locker.AcquireWithRetry(ctx, l.key, ttl, maxRetries, retryDelay)
	switch {
	case err != nil:
		return err
	case !ok:
		return ErrNotAcquired
	}
	l.held = true
	return nil
}

// Release is a no-op unless the key is held.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	_, err := l.locker.Release(ctx, l.key)
	return err
}

// Keys builds lock keys.
var Keys keyspace

type keyspace struct{}

// UserProvision guards creation of the user with uid from the external directory.
func (keyspace) UserProvision(uid string) string {
	return "lock:user:provision:" + uid
}

func retry(ctx context.Context, maxRetries int, retryDelay time.Duration, attempt func() (bool, error)) (bool, error) {
	for i := 0; ; i++ {
		ok, err := attempt()
		if err != nil || ok {
			return ok, err
		}
		if i >= maxRetries {
			return false, nil
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}
