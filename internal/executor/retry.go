// Package executor carries out the two-leg swap trade implied by a decision:
// retry policy, circuit breaker, single-leg order execution and the
// idempotent swap coordinator.
package executor

import (
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
)

// RetryReason classifies why an order attempt failed, which in turn selects
// the retry budget and backoff base for the next attempt.
type RetryReason string

const (
	ReasonNetworkError    RetryReason = "network_error"
	ReasonTimeout         RetryReason = "timeout"
	ReasonServerError     RetryReason = "server_error"
	ReasonTemporaryReject RetryReason = "temporary_reject"
)

type retryRule struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// RetryPolicy maps a failure reason to a retry budget and an exponential
// backoff base delay.
type RetryPolicy struct {
	rules    map[RetryReason]retryRule
	maxDelay time.Duration
}

// NewRetryPolicy returns the default policy: network errors get the most
// attempts with a moderate base, server errors back off hardest.
func NewRetryPolicy(maxDelay time.Duration) *RetryPolicy {
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	return &RetryPolicy{
		maxDelay: maxDelay,
		rules: map[RetryReason]retryRule{
			ReasonNetworkError:    {MaxRetries: 5, BaseDelay: 2 * time.Second},
			ReasonTimeout:         {MaxRetries: 3, BaseDelay: 1 * time.Second},
			ReasonServerError:     {MaxRetries: 3, BaseDelay: 5 * time.Second},
			ReasonTemporaryReject: {MaxRetries: 2, BaseDelay: 3 * time.Second},
		},
	}
}

// ShouldRetry reports whether another attempt is allowed after `attempt`
// failed attempts for the given reason.
func (p *RetryPolicy) ShouldRetry(attempt int, reason RetryReason) bool {
	rule, ok := p.rules[reason]
	if !ok {
		return false
	}
	return attempt < rule.MaxRetries
}

// Delay returns the backoff before the attempt after `attempt`, doubling each
// time and capped at the policy's max delay.
func (p *RetryPolicy) Delay(attempt int, reason RetryReason) time.Duration {
	rule, ok := p.rules[reason]
	if !ok {
		return p.maxDelay
	}
	d := rule.BaseDelay << uint(attempt)
	if d <= 0 || d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// ClassifyRetcode maps a broker return code to a retry reason. The mapping
// mirrors the MT5 trade server semantics and must stay in sync with the
// gateway: codes outside this table are terminal rejections (invalid price,
// invalid volume, permanently closed market) and get no retry.
func ClassifyRetcode(code int) (RetryReason, bool) {
	switch code {
	case domain.RetcodeConnection1, domain.RetcodeConnection2, domain.RetcodeConnection3:
		return ReasonNetworkError, true
	case domain.RetcodeTimeout1, domain.RetcodeTimeout2:
		return ReasonTimeout, true
	case domain.RetcodeRequote, domain.RetcodeNoConnection:
		return ReasonServerError, true
	case domain.RetcodeMarketClosed, domain.RetcodeNoMoney:
		return ReasonTemporaryReject, true
	}
	return "", false
}
