package executor

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's coarse state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// CircuitBreaker gates order execution when the gateway is failing
// systemically. It is shared across all concurrent executions, so every
// method takes the mutex.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMax      int

	failureCount    int
	lastFailureTime time.Time
	state           BreakerState
	halfOpenCalls   int
	trips           int64

	now    func() time.Time
	logger *slog.Logger
}

// NewCircuitBreaker builds a breaker. Zero arguments select the defaults:
// 5 consecutive failures to open, 5 minute recovery, 3 half-open probes.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration, halfOpenMax int, logger *slog.Logger) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 5 * time.Minute
	}
	if halfOpenMax <= 0 {
		halfOpenMax = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenMax:      halfOpenMax,
		state:            BreakerClosed,
		now:              time.Now,
		logger:           logger.With(slog.String("component", "circuit_breaker")),
	}
}

// CanExecute reports whether a leg attempt is currently permitted. When the
// breaker is OPEN and the recovery timeout has elapsed it transitions to
// HALF_OPEN and admits a limited number of probe calls.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastFailureTime) >= b.recoveryTimeout {
			b.state = BreakerHalfOpen
			b.halfOpenCalls = 0
			b.logger.Info("circuit breaker transitioning to HALF_OPEN")
			return true
		}
		return false
	case BreakerHalfOpen:
		return b.halfOpenCalls < b.halfOpenMax
	}
	return false
}

// OnSuccess records a successful gateway round trip. A half-open success
// closes the breaker; otherwise the failure count decays by one.
func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
		b.failureCount = 0
		b.logger.Info("circuit breaker reset to CLOSED")
		return
	}
	if b.failureCount > 0 {
		b.failureCount--
	}
}

// OnFailure records a failed gateway round trip and opens the breaker once
// the consecutive failure threshold is reached.
func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	if b.state == BreakerHalfOpen {
		b.halfOpenCalls++
	}

	if b.state == BreakerClosed && b.failureCount >= b.failureThreshold {
		b.state = BreakerOpen
		b.trips++
		b.logger.Warn("circuit breaker opened",
			slog.Int("failure_count", b.failureCount),
		)
	}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Trips returns how many times the breaker has opened.
func (b *CircuitBreaker) Trips() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// SetClock overrides the breaker's time source. Tests only.
func (b *CircuitBreaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
