package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brazilquant/swapbot/internal/domain"
)

func TestRetryPolicy_Budgets(t *testing.T) {
	p := NewRetryPolicy(60 * time.Second)

	cases := []struct {
		reason RetryReason
		max    int
	}{
		{ReasonNetworkError, 5},
		{ReasonTimeout, 3},
		{ReasonServerError, 3},
		{ReasonTemporaryReject, 2},
	}
	for _, tc := range cases {
		assert.True(t, p.ShouldRetry(tc.max-1, tc.reason), "%s below budget", tc.reason)
		assert.False(t, p.ShouldRetry(tc.max, tc.reason), "%s at budget", tc.reason)
	}

	assert.False(t, p.ShouldRetry(0, RetryReason("invalid_price")))
}

func TestRetryPolicy_BackoffDoublesAndCaps(t *testing.T) {
	p := NewRetryPolicy(60 * time.Second)

	// Timeout base 1s: 1s, 2s, 4s, 8s, ...
	prev := time.Duration(0)
	for attempt := 0; attempt < 6; attempt++ {
		d := p.Delay(attempt, ReasonTimeout)
		assert.Greater(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 60*time.Second)
		prev = d
	}
	assert.Equal(t, 1*time.Second, p.Delay(0, ReasonTimeout))
	assert.Equal(t, 2*time.Second, p.Delay(1, ReasonTimeout))
	assert.Equal(t, 32*time.Second, p.Delay(5, ReasonTimeout))

	// Server base 5s hits the cap at attempt 4 (5s<<4 = 80s).
	assert.Equal(t, 40*time.Second, p.Delay(3, ReasonServerError))
	assert.Equal(t, 60*time.Second, p.Delay(4, ReasonServerError))
	assert.Equal(t, 60*time.Second, p.Delay(20, ReasonServerError))

	// Absurd attempt counts must not wrap around below the cap.
	assert.Equal(t, 60*time.Second, p.Delay(64, ReasonNetworkError))
}

func TestClassifyRetcode(t *testing.T) {
	cases := []struct {
		code      int
		reason    RetryReason
		retryable bool
	}{
		{domain.RetcodeConnection1, ReasonNetworkError, true},
		{domain.RetcodeConnection2, ReasonNetworkError, true},
		{domain.RetcodeConnection3, ReasonNetworkError, true},
		{domain.RetcodeTimeout1, ReasonTimeout, true},
		{domain.RetcodeTimeout2, ReasonTimeout, true},
		{domain.RetcodeRequote, ReasonServerError, true},
		{domain.RetcodeNoConnection, ReasonServerError, true},
		{domain.RetcodeMarketClosed, ReasonTemporaryReject, true},
		{domain.RetcodeNoMoney, ReasonTemporaryReject, true},
		{domain.RetcodeInvalid, "", false},
		{99999, "", false},
	}
	for _, tc := range cases {
		reason, ok := ClassifyRetcode(tc.code)
		assert.Equal(t, tc.retryable, ok, "code %d", tc.code)
		assert.Equal(t, tc.reason, reason, "code %d", tc.code)
	}
}
