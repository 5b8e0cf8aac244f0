package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrDataUnavailable = errors.New("market data unavailable")
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrLockHeld        = errors.New("lock already held")
	ErrContextDone     = errors.New("context cancelled")
)
