package lock

import (
	"context"
	"time"
)

// NoOpLocker grants every request. Used when the directory runs as a single
// process; in-process single-flight already serialises provisioning there.
type NoOpLocker struct{}

func NewNoOpLocker() NoOpLocker { return NoOpLocker{} }

func (NoOpLocker) Acquire(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	return granted(ctx)
}

func (NoOpLocker) AcquireWithRetry(ctx context.Context, _ string, _ time.Duration, _ int, _ time.Duration) (bool, error) {
	return granted(ctx)
}

func (NoOpLocker) Release(ctx context.Context, _ string) (bool, error) {
	return granted(ctx)
}

func (NoOpLocker) Extend(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	return granted(ctx)
}

// IsHeld is always false; nothing is recorded.
func (NoOpLocker) IsHeld(ctx context.Context, _ string) (bool, error) {
	return false, ctx.Err()
}

func granted(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

var _ Locker = NoOpLocker{}
