package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/brazilquant/swapbot/internal/domain"
)

// ExecutionRecorder receives completed executions for persistence. The
// coordinator never blocks on it and never propagates its failures.
type ExecutionRecorder interface {
	RecordExecution(ctx context.Context, res domain.ExecutionResult)
}

// Coordinator orchestrates the two-leg swap implied by a decision: it
// enforces at-most-one execution per decision ID, sequences sell-then-buy,
// and aggregates leg results into one ExecutionResult with an audit trail.
type Coordinator struct {
	legs   *OrderExecutor
	quotes domain.MarketDataProvider
	audit  *AuditLog
	logger *slog.Logger

	// resultCache is the authoritative in-process idempotency store, keyed by
	// decision ID. Cleared only by explicit operator action.
	mu          sync.RWMutex
	resultCache map[string]domain.ExecutionResult
	inflightCancel map[string]context.CancelFunc

	// flight collapses concurrent calls for the same decision ID onto a
	// single execution; late callers receive the first caller's result.
	flight singleflight.Group

	// extCache and locks are the optional cross-process layer.
	extCache domain.ExecutionCache
	locks    domain.LockManager

	recorder ExecutionRecorder

	safetyMargin float64
	legTimeout   time.Duration

	metricsMu sync.Mutex
	total     int64
	success   int64
	failed    int64
	retries   int64

	now   func() time.Time
	newID func() string
}

// CoordinatorConfig carries the coordinator's tunables and optional
// collaborators.
type CoordinatorConfig struct {
	Quotes       domain.MarketDataProvider
	ExtCache     domain.ExecutionCache
	Locks        domain.LockManager
	Recorder     ExecutionRecorder
	SafetyMargin float64
	LegTimeout   time.Duration
}

// NewCoordinator builds a coordinator around a leg executor.
func NewCoordinator(legs *OrderExecutor, audit *AuditLog, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SafetyMargin <= 0 || cfg.SafetyMargin > 1 {
		cfg.SafetyMargin = 0.99
	}
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = 30 * time.Second
	}
	return &Coordinator{
		legs:           legs,
		quotes:         cfg.Quotes,
		audit:          audit,
		logger:         logger.With(slog.String("component", "swap_coordinator")),
		resultCache:    make(map[string]domain.ExecutionResult),
		inflightCancel: make(map[string]context.CancelFunc),
		extCache:       cfg.ExtCache,
		locks:          cfg.Locks,
		recorder:       cfg.Recorder,
		safetyMargin:   cfg.SafetyMargin,
		legTimeout:     cfg.LegTimeout,
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
	}
}

// ExecuteSwap executes the sell-then-buy sequence for one decision. It is
// idempotent per decision ID: a repeat call, concurrent or later, returns the
// already-computed result without touching the gateway again. It never
// returns an error for trade failures; the result's status carries the
// outcome.
func (c *Coordinator) ExecuteSwap(ctx context.Context, decisionID, sellSymbol, buySymbol string, quantity int64, maxSlippage float64) domain.ExecutionResult {
	if cached, ok := c.cachedResult(ctx, decisionID); ok {
		c.audit.Record(cached.ExecutionID, "execution_served_from_cache", map[string]any{
			"decision_id": decisionID,
		})
		return cached
	}

	v, _, _ := c.flight.Do(decisionID, func() (any, error) {
		// Double-check under the flight: a racing caller may have finished
		// between our cache miss and winning the flight slot.
		if cached, ok := c.cachedResult(ctx, decisionID); ok {
			return cached, nil
		}
		return c.execute(ctx, decisionID, sellSymbol, buySymbol, quantity, maxSlippage), nil
	})
	return v.(domain.ExecutionResult)
}

func (c *Coordinator) cachedResult(ctx context.Context, decisionID string) (domain.ExecutionResult, bool) {
	c.mu.RLock()
	res, ok := c.resultCache[decisionID]
	c.mu.RUnlock()
	if ok {
		return res, true
	}
	if c.extCache != nil {
		if ext, found, err := c.extCache.Get(ctx, decisionID); err == nil && found {
			c.mu.Lock()
			c.resultCache[decisionID] = ext
			c.mu.Unlock()
			return ext, true
		}
	}
	return domain.ExecutionResult{}, false
}

func (c *Coordinator) execute(ctx context.Context, decisionID, sellSymbol, buySymbol string, quantity int64, maxSlippage float64) domain.ExecutionResult {
	start := c.now()
	executionID := c.executionID(decisionID)

	// Cross-process guard: hold a short lock for the duration of the swap so
	// a second process replays from the shared cache instead of re-executing.
	if c.locks != nil {
		unlock, err := c.acquireLock(ctx, decisionID)
		if err == nil {
			defer unlock()
		} else if cached, ok := c.cachedResult(ctx, decisionID); ok {
			return cached
		} else {
			c.logger.Warn("proceeding without distributed lock",
				slog.String("decision_id", decisionID),
				slog.String("error", err.Error()),
			)
		}
	}

	execCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.inflightCancel[executionID] = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		delete(c.inflightCancel, executionID)
		c.mu.Unlock()
	}()

	result := domain.ExecutionResult{
		DecisionID:  decisionID,
		ExecutionID: executionID,
		Status:      domain.StatusPending,
		SellSymbol:  sellSymbol,
		BuySymbol:   buySymbol,
	}

	c.audit.Record(executionID, "execution_start", map[string]any{
		"decision_id":  decisionID,
		"sell_symbol":  sellSymbol,
		"buy_symbol":   buySymbol,
		"quantity":     quantity,
		"max_slippage": maxSlippage,
	})

	// Reference prices for the buy-quantity estimate and slippage accounting
	// come from live quotes captured now, before any leg is submitted.
	expectedSell, expectedBuy := c.referencePrices(execCtx, executionID, sellSymbol, buySymbol)

	sellReq := domain.OrderRequest{
		OrderID:     c.orderID(executionID, "SELL"),
		Symbol:      sellSymbol,
		Side:        domain.OrderSideSell,
		Quantity:    quantity,
		MaxSlippage: maxSlippage,
		Timeout:     c.legTimeout,
	}
	sellRes, sellRetries := c.legs.Execute(execCtx, sellReq, executionID)
	result.SellOrder = &sellRes
	result.RetryCount += sellRetries

	if !sellRes.Filled() {
		result.Status = domain.StatusFailed
		result.ErrorDetails = &domain.ErrorDetails{
			Reason:    "sell order failed",
			LegStatus: sellRes.Status,
			Message:   sellRes.ErrorMessage,
		}
		c.audit.Record(executionID, "execution_failed", map[string]any{
			"decision_id": decisionID,
			"reason":      "sell_order_failed",
			"sell_status": string(sellRes.Status),
		})
		return c.finalize(execCtx, result, start, false)
	}

	sellProceeds := sellRes.FilledValue()

	// Size the buy leg from realized sell proceeds with a safety margin for
	// price movement between the legs. The estimate price prefers the live
	// buy-side ask; when that is unavailable the sell fill doubles as a
	// correlated-instrument estimate.
	buyEstimate := expectedBuy
	if buyEstimate <= 0 {
		buyEstimate = sellRes.AvgFillPrice
		c.audit.Record(executionID, "buy_estimate_fallback", map[string]any{
			"decision_id": decisionID,
			"estimate":    buyEstimate,
		})
	}
	buyQuantity := int64(math.Floor(sellProceeds * c.safetyMargin / buyEstimate))
	if buyQuantity <= 0 {
		result.Status = domain.StatusFailed
		result.ErrorDetails = &domain.ErrorDetails{
			Reason:  "buy quantity computed as zero",
			Message: fmt.Sprintf("proceeds=%.2f estimate=%.2f", sellProceeds, buyEstimate),
		}
		return c.finalize(execCtx, result, start, false)
	}

	buyReq := domain.OrderRequest{
		OrderID:     c.orderID(executionID, "BUY"),
		Symbol:      buySymbol,
		Side:        domain.OrderSideBuy,
		Quantity:    buyQuantity,
		MaxSlippage: maxSlippage,
		Timeout:     c.legTimeout,
	}
	buyRes, buyRetries := c.legs.Execute(execCtx, buyReq, executionID)
	result.BuyOrder = &buyRes
	result.RetryCount += buyRetries

	if !buyRes.Filled() {
		// Partial failure: proceeds are in cash, not redeployed. Distinct
		// from a full failure so an operator can intervene.
		result.Status = domain.StatusFailed
		result.ErrorDetails = &domain.ErrorDetails{
			Reason:    "buy failed after successful sell",
			LegStatus: buyRes.Status,
			Message:   buyRes.ErrorMessage,
		}
		c.audit.Record(executionID, "execution_partial_failure", map[string]any{
			"decision_id": decisionID,
			"sell_filled": sellRes.FilledQuantity,
			"buy_status":  string(buyRes.Status),
			"buy_error":   buyRes.ErrorMessage,
		})
		return c.finalize(execCtx, result, start, false)
	}

	result.Status = domain.StatusFilled
	result.TotalFilledValue = buyRes.FilledValue()
	result.TotalCommission = sellRes.Commission + buyRes.Commission
	result.NetProceeds = sellProceeds - result.TotalFilledValue - result.TotalCommission
	result.SlippagePct = legSlippagePct(sellRes.AvgFillPrice, expectedSell) +
		legSlippagePct(buyRes.AvgFillPrice, expectedBuy)

	c.audit.Record(executionID, "execution_success", map[string]any{
		"decision_id":  decisionID,
		"sell_filled":  sellRes.FilledQuantity,
		"buy_filled":   buyRes.FilledQuantity,
		"net_proceeds": result.NetProceeds,
		"slippage_pct": result.SlippagePct,
	})
	return c.finalize(execCtx, result, start, true)
}

// legSlippagePct returns the absolute deviation of a fill price from its
// expected price, in percent. Zero when no reference price was available.
func legSlippagePct(fill, expected float64) float64 {
	if expected <= 0 || fill <= 0 {
		return 0
	}
	return math.Abs(fill-expected) / expected * 100
}

func (c *Coordinator) referencePrices(ctx context.Context, executionID, sellSymbol, buySymbol string) (expectedSell, expectedBuy float64) {
	if c.quotes == nil {
		return 0, 0
	}
	if q, err := c.quotes.GetQuote(ctx, sellSymbol); err == nil {
		expectedSell = q.Bid
	} else {
		c.audit.Record(executionID, "reference_quote_unavailable", map[string]any{
			"symbol": sellSymbol, "error": err.Error(),
		})
	}
	if q, err := c.quotes.GetQuote(ctx, buySymbol); err == nil {
		expectedBuy = q.Ask
	} else {
		c.audit.Record(executionID, "reference_quote_unavailable", map[string]any{
			"symbol": buySymbol, "error": err.Error(),
		})
	}
	return expectedSell, expectedBuy
}

func (c *Coordinator) finalize(ctx context.Context, result domain.ExecutionResult, start time.Time, success bool) domain.ExecutionResult {
	result.Duration = c.now().Sub(start)
	result.AuditTrail = c.audit.TrailFor(result.ExecutionID)

	c.mu.Lock()
	c.resultCache[result.DecisionID] = result
	c.mu.Unlock()

	if c.extCache != nil {
		if err := c.extCache.Set(ctx, result); err != nil {
			c.logger.Warn("execution cache write failed",
				slog.String("decision_id", result.DecisionID),
				slog.String("error", err.Error()),
			)
		}
	}

	c.metricsMu.Lock()
	c.total++
	if success {
		c.success++
	} else {
		c.failed++
	}
	c.retries += int64(result.RetryCount)
	c.metricsMu.Unlock()

	if c.recorder != nil {
		// Persistence is best effort and off the trading path.
		go func(res domain.ExecutionResult) {
			persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			c.recorder.RecordExecution(persistCtx, res)
		}(result)
	}

	c.audit.Record(result.ExecutionID, "execution_complete", map[string]any{
		"decision_id": result.DecisionID,
		"status":      string(result.Status),
		"duration_ms": result.Duration.Milliseconds(),
		"retry_count": result.RetryCount,
	})
	return result
}

// ExecutionStatus returns the cached result for a decision, if any.
func (c *Coordinator) ExecutionStatus(decisionID string) (domain.ExecutionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.resultCache[decisionID]
	return res, ok
}

// CancelExecution abandons the pending retries of an in-flight execution.
// A leg already submitted to the gateway is not recalled; only waits between
// attempts are interrupted. Returns false when the execution is not running.
func (c *Coordinator) CancelExecution(executionID string) bool {
	c.mu.RLock()
	cancel, ok := c.inflightCancel[executionID]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	c.audit.Record(executionID, "execution_cancel_requested", nil)
	cancel()
	return true
}

// Metrics returns an aggregate snapshot.
func (c *Coordinator) Metrics() domain.ExecutionMetrics {
	c.metricsMu.Lock()
	m := domain.ExecutionMetrics{
		Total:   c.total,
		Success: c.success,
		Failed:  c.failed,
		Retries: c.retries,
	}
	c.metricsMu.Unlock()

	c.mu.RLock()
	m.CachedExecutions = len(c.resultCache)
	c.mu.RUnlock()

	if c.legs != nil && c.legs.breaker != nil {
		m.BreakerState = string(c.legs.breaker.State())
		m.BreakerTrips = c.legs.breaker.Trips()
	}
	return m
}

// ClearCache drops every cached execution result. Operator action only; the
// idempotency guarantee does not survive it.
func (c *Coordinator) ClearCache() {
	c.mu.Lock()
	c.resultCache = make(map[string]domain.ExecutionResult)
	c.mu.Unlock()
}

func (c *Coordinator) acquireLock(ctx context.Context, decisionID string) (func(), error) {
	deadline := c.now().Add(c.legTimeout)
	for {
		unlock, err := c.locks.Acquire(ctx, "swap:"+decisionID, 2*c.legTimeout)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) || c.now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (c *Coordinator) executionID(decisionID string) string {
	short := decisionID
	if len(short) > 8 {
		short = short[:8]
	}
	stamp := c.now().Format("20060102_150405")
	return fmt.Sprintf("exec_%s_%s_%s", short, stamp, strings.ReplaceAll(c.newID(), "-", "")[:8])
}

func (c *Coordinator) orderID(executionID, leg string) string {
	return fmt.Sprintf("order_%s_%s_%s", executionID, leg, strings.ReplaceAll(c.newID(), "-", "")[:6])
}
