package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates background work across service instances so
// that only one instance sweeps link states at a time.
type DistributedLock interface {
	// Acquire tries to take the named lock for ttl without blocking.
	// Returns false, nil when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops the named lock if this instance holds it.
	// Releasing a lock that is not held is not an error.
	Release(ctx context.Context, name string) error

	// Extend pushes out the TTL of a lock held by this instance.
	// Backends without TTLs treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
