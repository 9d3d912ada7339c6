package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker serializes work on one project across controller replicas that share a store.
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The lock expires after ttl
	// if the holder never releases it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
