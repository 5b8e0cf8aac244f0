package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
)

// OrderExecutor executes a single order leg against the trade gateway,
// applying the retry policy and the shared circuit breaker. It never mutates
// the caller's request.
type OrderExecutor struct {
	gateway domain.TradeGateway
	policy  *RetryPolicy
	breaker *CircuitBreaker
	audit   *AuditLog
	logger  *slog.Logger

	// maxAttempts bounds the retry loop regardless of per-reason budgets.
	maxAttempts int
	// partialFillAccept is the fraction of the requested quantity a partial
	// fill must reach to be accepted instead of cancelled and retried.
	partialFillAccept float64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrderExecutor wires an executor around a gateway, policy and breaker.
func NewOrderExecutor(gateway domain.TradeGateway, policy *RetryPolicy, breaker *CircuitBreaker, audit *AuditLog, logger *slog.Logger) *OrderExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderExecutor{
		gateway:           gateway,
		policy:            policy,
		breaker:           breaker,
		audit:             audit,
		logger:            logger.With(slog.String("component", "order_executor")),
		maxAttempts:       3,
		partialFillAccept: 0.8,
		now:               time.Now,
		sleep:             sleepCtx,
	}
}

// SetMaxAttempts overrides the overall attempt bound. Must be called before
// the executor is shared.
func (e *OrderExecutor) SetMaxAttempts(n int) {
	if n > 0 {
		e.maxAttempts = n
	}
}

// SetPartialFillAcceptance overrides the partial-fill acceptance fraction.
func (e *OrderExecutor) SetPartialFillAcceptance(frac float64) {
	if frac > 0 && frac <= 1 {
		e.partialFillAccept = frac
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs the retry loop for one leg and returns its terminal result
// together with the number of retries consumed. Transient failures are fully
// absorbed here; the returned status is final.
func (e *OrderExecutor) Execute(ctx context.Context, req domain.OrderRequest, executionID string) (domain.OrderResult, int) {
	result := domain.OrderResult{
		OrderID: req.OrderID,
		Status:  domain.StatusPending,
	}
	retries := 0

	for attempt := 0; attempt <= e.maxAttempts; attempt++ {
		if !e.breaker.CanExecute() {
			result.Status = domain.StatusFailed
			result.ErrorMessage = domain.ErrCircuitOpen.Error()
			e.audit.Record(executionID, "order_circuit_open", map[string]any{
				"order_id":      req.OrderID,
				"breaker_state": string(e.breaker.State()),
			})
			return result, retries
		}

		e.audit.Record(executionID, "order_attempt", map[string]any{
			"order_id": req.OrderID,
			"attempt":  attempt + 1,
			"symbol":   req.Symbol,
			"side":     string(req.Side),
			"quantity": req.Quantity,
		})

		result.SubmittedAt = e.now()
		attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
		resp, err := e.gateway.SendOrder(attemptCtx, req)
		cancel()
		result.CompletedAt = e.now()
		result.Latency = result.CompletedAt.Sub(result.SubmittedAt)

		if err != nil {
			reason := ReasonNetworkError
			if errors.Is(err, context.DeadlineExceeded) {
				reason = ReasonTimeout
			}
			e.breaker.OnFailure()
			e.audit.Record(executionID, "order_transport_error", map[string]any{
				"order_id": req.OrderID,
				"attempt":  attempt + 1,
				"error":    err.Error(),
				"reason":   string(reason),
			})

			if !e.retryAfter(ctx, executionID, req.OrderID, attempt, reason, &retries) {
				if reason == ReasonTimeout {
					result.Status = domain.StatusTimeout
				} else {
					result.Status = domain.StatusFailed
				}
				result.ErrorMessage = err.Error()
				return result, retries
			}
			if ctx.Err() != nil {
				result.Status = domain.StatusCancelled
				result.ErrorMessage = ctx.Err().Error()
				return result, retries
			}
			continue
		}

		switch resp.Retcode {
		case domain.RetcodeDone:
			result.Status = domain.StatusFilled
			result.FilledQuantity = req.Quantity
			result.AvgFillPrice = resp.FillPrice
			result.Commission = resp.Commission
			result.BrokerOrderID = resp.OrderID
			result.BrokerDealID = resp.DealID
			e.breaker.OnSuccess()
			e.audit.Record(executionID, "order_filled", map[string]any{
				"order_id":        req.OrderID,
				"filled_quantity": result.FilledQuantity,
				"avg_price":       result.AvgFillPrice,
				"latency_ms":      result.Latency.Milliseconds(),
				"broker_order_id": result.BrokerOrderID,
			})
			return result, retries

		case domain.RetcodeDonePartial:
			filled := int64(resp.FilledVolume)
			if filled > req.Quantity {
				filled = req.Quantity
			}
			result.Status = domain.StatusPartialFill
			result.FilledQuantity = filled
			result.AvgFillPrice = resp.FillPrice
			result.Commission = resp.Commission
			result.BrokerOrderID = resp.OrderID
			result.BrokerDealID = resp.DealID
			e.audit.Record(executionID, "order_partial_fill", map[string]any{
				"order_id":  req.OrderID,
				"requested": req.Quantity,
				"filled":    filled,
				"remaining": req.Quantity - filled,
			})

			if float64(filled) >= float64(req.Quantity)*e.partialFillAccept {
				e.breaker.OnSuccess()
				return result, retries
			}

			// Below the acceptance threshold: cancel the remainder and retry
			// the whole leg as a temporary rejection.
			if ok, cerr := e.gateway.CancelOrder(ctx, resp.OrderID); cerr != nil || !ok {
				e.logger.Warn("cancel of partial remainder failed",
					slog.String("order_id", req.OrderID),
					slog.Int64("broker_order_id", resp.OrderID),
				)
			} else {
				e.audit.Record(executionID, "order_remainder_cancelled", map[string]any{
					"order_id":        req.OrderID,
					"broker_order_id": resp.OrderID,
				})
			}
			if !e.retryAfter(ctx, executionID, req.OrderID, attempt, ReasonTemporaryReject, &retries) {
				result.Status = domain.StatusFailed
				result.ErrorMessage = "partial fill below acceptance threshold"
				return result, retries
			}
			if ctx.Err() != nil {
				result.Status = domain.StatusCancelled
				result.ErrorMessage = ctx.Err().Error()
				return result, retries
			}
			continue

		default:
			result.ErrorCode = resp.Retcode
			result.ErrorMessage = resp.Comment

			reason, retryable := ClassifyRetcode(resp.Retcode)
			if retryable && e.policy.ShouldRetry(attempt, reason) {
				e.audit.Record(executionID, "order_retry", map[string]any{
					"order_id":   req.OrderID,
					"attempt":    attempt + 1,
					"error_code": resp.Retcode,
					"error":      resp.Comment,
					"reason":     string(reason),
				})
				retries++
				if err := e.sleep(ctx, e.policy.Delay(attempt, reason)); err != nil {
					result.Status = domain.StatusCancelled
					result.ErrorMessage = err.Error()
					return result, retries
				}
				continue
			}

			result.Status = domain.StatusRejected
			e.audit.Record(executionID, "order_rejected", map[string]any{
				"order_id":   req.OrderID,
				"error_code": resp.Retcode,
				"error":      resp.Comment,
			})
			return result, retries
		}
	}

	// Attempt budget exhausted without a terminal response.
	if result.Status == domain.StatusPending || result.Status == domain.StatusPartialFill {
		result.Status = domain.StatusFailed
		if result.ErrorMessage == "" {
			result.ErrorMessage = "retry attempts exhausted"
		}
	}
	return result, retries
}

// retryAfter checks the policy, counts the retry and performs the backoff
// sleep. It returns false when no further attempt is allowed. A cancelled
// context surfaces through ctx.Err() on return.
func (e *OrderExecutor) retryAfter(ctx context.Context, executionID, orderID string, attempt int, reason RetryReason, retries *int) bool {
	if !e.policy.ShouldRetry(attempt, reason) {
		return false
	}
	*retries++
	delay := e.policy.Delay(attempt, reason)
	e.audit.Record(executionID, "order_backoff", map[string]any{
		"order_id": orderID,
		"attempt":  attempt + 1,
		"reason":   string(reason),
		"delay_ms": delay.Milliseconds(),
	})
	if err := e.sleep(ctx, delay); err != nil {
		return true // caller inspects ctx.Err()
	}
	return true
}
