package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brazilquant/swapbot/internal/backtest"
	"github.com/brazilquant/swapbot/internal/domain"
	"github.com/brazilquant/swapbot/internal/engine"
	"github.com/brazilquant/swapbot/internal/executor"
	"github.com/brazilquant/swapbot/internal/service"
)

// TradeMode runs live decision cycles with execution enabled (subject to the
// auto_execute switch and the confidence gate).
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.String("on_symbol", a.cfg.Symbols.ON),
		slog.String("pn_symbol", a.cfg.Symbols.PN),
		slog.Bool("auto_execute", a.cfg.Decision.AutoExecute),
	)
	return a.runLive(ctx, deps, a.cfg.Decision.AutoExecute)
}

// MonitorMode runs the same decision cycles with execution forced off:
// decisions are logged and persisted but never traded.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.String("on_symbol", a.cfg.Symbols.ON),
		slog.String("pn_symbol", a.cfg.Symbols.PN),
	)
	return a.runLive(ctx, deps, false)
}

// BacktestMode replays the decision and execution stack over a generated
// series and logs the summary metrics.
func (a *App) BacktestMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting backtest mode")

	scenario := backtest.DefaultScenario(a.cfg.Symbols.ON, a.cfg.Symbols.PN)
	scenario.Ticks = a.cfg.Backtest.Ticks
	scenario.Seed = a.cfg.Backtest.Seed
	scenario.BasePrice = a.cfg.Backtest.BasePrice
	scenario.Interval = a.cfg.Decision.CycleInterval.Duration

	runner := backtest.NewRunner(backtest.RunnerConfig{
		Scenario: scenario,
		Costs: backtest.CostModel{
			CommissionPct: a.cfg.Backtest.CommissionPct,
		},
		Engine:              a.engineConfig(),
		PositionSize:        a.cfg.Decision.PositionSize,
		ConfidenceThreshold: a.cfg.Decision.ConfidenceThreshold,
		MaxSlippage:         a.cfg.Executor.MaxSlippage,
		InitialCapital:      a.cfg.Backtest.InitialCapital,
	}, a.logger)

	m, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "backtest metrics",
		slog.Float64("final_equity", m.FinalEquity),
		slog.Float64("total_return_pct", m.TotalReturnPct),
		slog.Int("trades", m.Trades),
		slog.Float64("hit_rate", m.HitRate),
		slog.Float64("profit_factor", m.ProfitFactor),
		slog.Float64("sharpe", m.Sharpe),
		slog.Float64("sortino", m.Sortino),
		slog.Float64("var_95", m.VaR95),
		slog.Float64("cvar_95", m.CVaR95),
		slog.Float64("max_drawdown_pct", m.MaxDrawdownPct),
	)
	return nil
}

// runLive builds the engine/executor stack around the bridge and runs the
// decision cycle on the configured interval until the context is cancelled.
func (a *App) runLive(ctx context.Context, deps *Dependencies, autoExecute bool) error {
	eng := engine.New(deps.Bridge, a.engineConfig(), a.logger)

	audit := executor.NewAuditLog(a.logger)
	breaker := executor.NewCircuitBreaker(
		a.cfg.Breaker.FailureThreshold,
		a.cfg.Breaker.RecoveryTimeout.Duration,
		a.cfg.Breaker.HalfOpenMaxCalls,
		a.logger,
	)
	legs := executor.NewOrderExecutor(
		deps.Bridge,
		executor.NewRetryPolicy(a.cfg.Executor.MaxRetryDelay.Duration),
		breaker,
		audit,
		a.logger,
	)
	legs.SetMaxAttempts(a.cfg.Executor.MaxAttempts)
	legs.SetPartialFillAcceptance(a.cfg.Executor.PartialFillAcceptance)

	var recorder executor.ExecutionRecorder
	if deps.Sink != nil {
		recorder = service.NewRecorder(deps.Sink, a.logger)
	}

	coord := executor.NewCoordinator(legs, audit, executor.CoordinatorConfig{
		Quotes:       deps.Bridge,
		ExtCache:     deps.ExecutionCache,
		Locks:        deps.LockManager,
		Recorder:     recorder,
		SafetyMargin: a.cfg.Executor.SafetyMargin,
		LegTimeout:   a.cfg.Executor.LegTimeout.Duration,
	}, a.logger)

	svc := service.NewSwapService(eng, coord, legs, recorder, deps.Sink, service.SwapServiceConfig{
		ONSymbol:            a.cfg.Symbols.ON,
		PNSymbol:            a.cfg.Symbols.PN,
		PositionSize:        a.cfg.Decision.PositionSize,
		MaxSlippage:         a.cfg.Executor.MaxSlippage,
		ConfidenceThreshold: a.cfg.Decision.ConfidenceThreshold,
		AutoExecute:         autoExecute,
		LegTimeout:          a.cfg.Executor.LegTimeout.Duration,
	}, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	// Publish stream ticks into the shared quote cache so dashboards can
	// follow the pair.
	if deps.Stream != nil {
		if deps.QuoteCache != nil {
			qc := deps.QuoteCache
			deps.Stream.OnTick(func(q domain.Quote) {
				tickCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := qc.SetQuote(tickCtx, q); err != nil {
					a.logger.Debug("quote cache publish failed", slog.String("error", err.Error()))
				}
			})
		}
		if err := deps.Stream.Subscribe(ctx, []string{a.cfg.Symbols.ON, a.cfg.Symbols.PN}); err != nil {
			a.logger.WarnContext(ctx, "tick stream subscribe failed",
				slog.String("error", err.Error()),
			)
		}
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Decision.CycleInterval.Duration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				outcome, err := svc.RunCycle(ctx)
				if err != nil {
					// A rejected transition is a bug worth stopping on; the
					// engine state and reality may have diverged.
					return err
				}
				if outcome.Executed && outcome.Execution != nil {
					a.logger.InfoContext(ctx, "cycle executed",
						slog.String("decision_id", outcome.DecisionID),
						slog.String("type", string(outcome.Decision.Type)),
						slog.String("status", string(outcome.Execution.Status)),
						slog.Float64("net_proceeds", outcome.Execution.NetProceeds),
					)
				}
			}
		}
	})

	return g.Wait()
}

func (a *App) engineConfig() engine.Config {
	return engine.Config{
		ONSymbol: a.cfg.Symbols.ON,
		PNSymbol: a.cfg.Symbols.PN,
		Analyzer: engine.AnalyzerConfig{
			MinPremiumThreshold: a.cfg.Decision.MinPremiumThreshold,
			MaxSpreadCost:       a.cfg.Decision.MaxSpreadCost,
			MinVolume:           a.cfg.Decision.MinVolume,
		},
		Decision: engine.DecisionConfig{
			MinPremiumThreshold: a.cfg.Decision.MinPremiumThreshold,
			SwapThreshold:       a.cfg.Decision.SwapThreshold,
			TakeProfitThreshold: a.cfg.Decision.TakeProfitThreshold,
			StopLossThreshold:   a.cfg.Decision.StopLossThreshold,
			ConfidenceThreshold: a.cfg.Decision.ConfidenceThreshold,
		},
	}
}
