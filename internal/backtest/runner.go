package backtest

import (
	"context"
	"log/slog"
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
	"github.com/brazilquant/swapbot/internal/engine"
	"github.com/brazilquant/swapbot/internal/executor"
	"github.com/brazilquant/swapbot/internal/service"
)

// RunnerConfig configures one backtest run.
type RunnerConfig struct {
	Scenario ScenarioConfig
	Costs    CostModel
	Engine   engine.Config

	PositionSize        int64
	ConfidenceThreshold float64
	MaxSlippage         float64
	InitialCapital      float64
}

// Runner replays the real decision and execution code paths over a generated
// series. Only the gateway is simulated; the engine, executor, coordinator,
// and swap service are the same objects the live bot runs.
type Runner struct {
	cfg    RunnerConfig
	logger *slog.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100_000
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "backtest")),
	}
}

// tradeResult is one completed round trip (entry to flat).
type tradeResult struct {
	pnl float64
	mfe float64
	mae float64
}

// Run executes the backtest and returns the summary metrics.
func (r *Runner) Run(ctx context.Context) (Metrics, error) {
	ticks := GenerateTicks(r.cfg.Scenario)
	gw := NewSimGateway(r.cfg.Costs)

	eng := engine.New(gw, r.cfg.Engine, r.logger)

	audit := executor.NewAuditLog(r.logger)
	breaker := executor.NewCircuitBreaker(5, 5*time.Minute, 3, r.logger)
	legs := executor.NewOrderExecutor(gw, executor.NewRetryPolicy(0), breaker, audit, r.logger)
	coord := executor.NewCoordinator(legs, audit, executor.CoordinatorConfig{
		Quotes: gw,
	}, r.logger)

	svc := service.NewSwapService(eng, coord, legs, nil, nil, service.SwapServiceConfig{
		ONSymbol:            r.cfg.Scenario.ONSymbol,
		PNSymbol:            r.cfg.Scenario.PNSymbol,
		PositionSize:        r.cfg.PositionSize,
		MaxSlippage:         r.cfg.MaxSlippage,
		ConfidenceThreshold: r.cfg.ConfidenceThreshold,
		AutoExecute:         true,
	}, r.logger)

	cash := r.cfg.InitialCapital
	equity := make([]float64, 0, len(ticks))
	var trades []tradeResult
	decisions := 0

	// Open-trade tracking for excursion and round-trip pnl.
	inTrade := false
	entryEquity := 0.0
	curMFE, curMAE := 0.0, 0.0

	for _, tick := range ticks {
		select {
		case <-ctx.Done():
			return Metrics{}, ctx.Err()
		default:
		}

		gw.Advance(tick)

		outcome, err := svc.RunCycle(ctx)
		if err != nil {
			return Metrics{}, err
		}
		decisions++

		if outcome.Executed && outcome.Execution != nil {
			cash += cashFlow(*outcome.Execution)
		}

		eq := cash + r.positionValue(eng, tick)
		equity = append(equity, eq)

		nowFlat := eng.State() == domain.StateIdle
		switch {
		case !inTrade && !nowFlat:
			inTrade = true
			entryEquity = eq
			curMFE, curMAE = 0, 0
		case inTrade && !nowFlat:
			if exc := eq - entryEquity; exc > curMFE {
				curMFE = exc
			} else if exc < curMAE {
				curMAE = exc
			}
		case inTrade && nowFlat:
			trades = append(trades, tradeResult{
				pnl: eq - entryEquity,
				mfe: curMFE,
				mae: curMAE,
			})
			inTrade = false
		}
	}

	// A position still open at the end counts as a trade at its marked value.
	if inTrade && len(equity) > 0 {
		trades = append(trades, tradeResult{
			pnl: equity[len(equity)-1] - entryEquity,
			mfe: curMFE,
			mae: curMAE,
		})
	}

	m := computeMetrics(r.cfg.InitialCapital, equity, trades, decisions)

	r.logger.Info("backtest complete",
		slog.Int("ticks", len(ticks)),
		slog.Int("trades", m.Trades),
		slog.Float64("total_return_pct", m.TotalReturnPct),
		slog.Float64("hit_rate", m.HitRate),
		slog.Float64("max_drawdown_pct", m.MaxDrawdownPct),
		slog.Float64("sharpe", m.Sharpe),
	)

	return m, nil
}

// cashFlow is the signed cash effect of one execution: sells add proceeds,
// buys subtract cost, commissions subtract on both.
func cashFlow(res domain.ExecutionResult) float64 {
	flow := 0.0
	if res.SellOrder != nil && res.SellOrder.Filled() {
		flow += res.SellOrder.FilledValue() - res.SellOrder.Commission
	}
	if res.BuyOrder != nil && res.BuyOrder.Filled() {
		flow -= res.BuyOrder.FilledValue() + res.BuyOrder.Commission
	}
	return flow
}

// positionValue marks the open position, if any, at the current tick's mid.
func (r *Runner) positionValue(eng *engine.Engine, tick Tick) float64 {
	pos := eng.Position()
	if pos == nil {
		return 0
	}
	mid := tick.ON.Mid()
	if pos.Symbol == tick.PN.Symbol {
		mid = tick.PN.Mid()
	}
	return float64(pos.Quantity) * mid
}
