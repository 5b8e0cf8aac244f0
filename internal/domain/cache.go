package domain

import (
	"context"
	"time"
)

// ExecutionCache is an optional second-level idempotency cache shared across
// processes (the in-process result map is always authoritative for a running
// coordinator).
type ExecutionCache interface {
	Get(ctx context.Context, decisionID string) (ExecutionResult, bool, error)
	Set(ctx context.Context, result ExecutionResult) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
