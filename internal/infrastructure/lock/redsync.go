// Package lock provides short-lived Redis mutexes keyed by resource.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loanflow/internal/domain/loan"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrBusy means another holder owns the lock. It matches loan.ErrConflict;
	// every other Acquire error is a Redis failure.
	ErrBusy    = fmt.Errorf("lock is held by another request: %w", loan.ErrConflict)
	ErrNotHeld = errors.New("lock was not held or already expired")
)

type Locker struct {
	rs     *redsync.Redsync
	ttl    time.Duration
	prefix string
}

// New builds a Locker over client. Locks expire after ttl even if never released.
func New(client redis.UniversalClient, ttl time.Duration) *Locker {
	return &Locker{rs: redsync.New(goredis.NewPool(client)), ttl: ttl, prefix: "lock:"}
}

// Acquire takes the lock for key without waiting. A held lock yields ErrBusy.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	m := l.rs.NewMutex(l.prefix+key,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(1),
	)
	if err := m.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, key)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	release := func(ctx context.Context) error {
		ok, err := m.UnlockContext(ctx)
		switch {
		case ok:
			return nil
		case err == nil:
			return ErrNotHeld
		default:
			return fmt.Errorf("%w: %v", ErrNotHeld, err)
		}
	}
	return release, nil
}

// isContention: a single try reports a held key as a multierror of
// *ErrNodeTaken; ErrFailed and *ErrTaken cover retries and fail-fast.
func isContention(err error) bool {
	var (
		taken     *redsync.ErrTaken
		nodeTaken *redsync.ErrNodeTaken
	)
	return errors.Is(err, redsync.ErrFailed) ||
		errors.As(err, &taken) ||
		errors.As(err, &nodeTaken)
}
