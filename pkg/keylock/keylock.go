// Package keylock serializes work per key, such as one (user, symbol) pair.
package keylock

import (
	"context"
	"errors"
)

// ErrLockHeld is returned by non-blocking lockers when another holder owns the key.
var ErrLockHeld = errors.New("keylock: lock held by another holder")

// Locker acquires an exclusive section for key. The returned unlock func is
// safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
