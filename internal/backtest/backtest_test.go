package backtest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brazilquant/swapbot/internal/domain"
	"github.com/brazilquant/swapbot/internal/engine"
)

func TestGenerateTicks_Deterministic(t *testing.T) {
	cfg := DefaultScenario("PETR3", "PETR4")
	cfg.Ticks = 200

	a := GenerateTicks(cfg)
	b := GenerateTicks(cfg)
	require.Len(t, a, 200)
	assert.Equal(t, a, b, "same seed must reproduce the series")

	cfg.Seed = 43
	c := GenerateTicks(cfg)
	assert.NotEqual(t, a, c)
}

func TestGenerateTicks_Shape(t *testing.T) {
	cfg := DefaultScenario("PETR3", "PETR4")
	cfg.Ticks = 100

	ticks := GenerateTicks(cfg)
	for i, tick := range ticks {
		assert.Equal(t, "PETR3", tick.ON.Symbol)
		assert.Equal(t, "PETR4", tick.PN.Symbol)
		assert.Greater(t, tick.ON.Ask, tick.ON.Bid, "tick %d", i)
		assert.Greater(t, tick.PN.Ask, tick.PN.Bid, "tick %d", i)
		assert.Equal(t, cfg.Volume, tick.ON.Volume)
		if i > 0 {
			assert.True(t, tick.ON.Timestamp.After(ticks[i-1].ON.Timestamp))
		}
	}
}

func TestCostModel(t *testing.T) {
	m := CostModel{CommissionPct: 0.05, SlippagePct: 0.10}

	assert.InDelta(t, 5.0, m.Commission(10000), 1e-9)
	assert.InDelta(t, 100.1, m.FillPrice(100, true), 1e-9)
	assert.InDelta(t, 99.9, m.FillPrice(100, false), 1e-9)
}

func TestSimGateway_QuoteAndFill(t *testing.T) {
	g := NewSimGateway(CostModel{CommissionPct: 0.05})
	g.Advance(Tick{
		ON: domain.Quote{Symbol: "PETR3", Bid: 34.98, Ask: 35.02, Volume: 50000},
		PN: domain.Quote{Symbol: "PETR4", Bid: 35.10, Ask: 35.14, Volume: 50000},
	})
	ctx := context.Background()

	q, err := g.GetQuote(ctx, "PETR4")
	require.NoError(t, err)
	assert.InDelta(t, 35.12, q.Mid(), 1e-9)

	_, err = g.GetQuote(ctx, "VALE3")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	resp, err := g.SendOrder(ctx, domain.OrderRequest{
		OrderID: "o1", Symbol: "PETR3", Side: domain.OrderSideSell, Quantity: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RetcodeDone, resp.Retcode)
	assert.InDelta(t, 34.98, resp.FillPrice, 1e-9)
	assert.InDelta(t, 100.0, resp.FilledVolume, 1e-9)
	assert.InDelta(t, 100*34.98*0.0005, resp.Commission, 1e-9)

	resp2, err := g.SendOrder(ctx, domain.OrderRequest{
		OrderID: "o2", Symbol: "PETR4", Side: domain.OrderSideBuy, Quantity: 50,
	})
	require.NoError(t, err)
	assert.InDelta(t, 35.14, resp2.FillPrice, 1e-9)
	assert.Greater(t, resp2.OrderID, resp.OrderID)
}

func TestComputeMetrics(t *testing.T) {
	equity := []float64{100_000, 120_000, 90_000, 130_000}
	trades := []tradeResult{
		{pnl: 500, mfe: 700, mae: -100},
		{pnl: -200, mfe: 100, mae: -300},
		{pnl: 300, mfe: 400, mae: -50},
	}

	m := computeMetrics(100_000, equity, trades, 10)

	assert.InDelta(t, 130_000, m.FinalEquity, 1e-9)
	assert.InDelta(t, 30.0, m.TotalReturnPct, 1e-9)
	assert.Equal(t, 3, m.Trades)
	assert.Equal(t, 2, m.Wins)
	assert.InDelta(t, 2.0/3.0, m.HitRate, 1e-9)
	assert.InDelta(t, 800.0/200.0, m.ProfitFactor, 1e-9)

	// Peak 120k to trough 90k.
	assert.InDelta(t, 25.0, m.MaxDrawdownPct, 1e-9)

	assert.InDelta(t, 700, m.MaxFavorableExcursion, 1e-9)
	assert.InDelta(t, -300, m.MaxAdverseExcursion, 1e-9)
}

func TestComputeMetrics_NoLosses(t *testing.T) {
	equity := []float64{100_000, 101_000}
	m := computeMetrics(100_000, equity, []tradeResult{{pnl: 1000}}, 2)

	assert.True(t, math.IsInf(m.ProfitFactor, 1))
	assert.InDelta(t, 1.0, m.HitRate, 1e-9)
}

func TestComputeMetrics_EmptyRun(t *testing.T) {
	m := computeMetrics(100_000, nil, nil, 0)

	assert.InDelta(t, 100_000, m.FinalEquity, 1e-9)
	assert.Zero(t, m.Trades)
	assert.Zero(t, m.Sharpe)
}

func TestDownsideDeviation(t *testing.T) {
	assert.Zero(t, downsideDeviation([]float64{0.01, 0.02}))
	assert.InDelta(t, 0.02, downsideDeviation([]float64{0.05, -0.02}), 1e-9)
}

func TestTailMean(t *testing.T) {
	sorted := []float64{-0.05, -0.03, -0.01, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.07}
	// Worst 5% of 10 samples rounds up to one sample.
	assert.InDelta(t, -0.05, tailMean(sorted, 0.05), 1e-9)
	// Worst 20% averages the two most negative.
	assert.InDelta(t, -0.04, tailMean(sorted, 0.20), 1e-9)
}

// TestRunner_FullCycle replays a full premium wave and expects the stack to
// enter, swap, and exit at least once.
func TestRunner_FullCycle(t *testing.T) {
	scenario := DefaultScenario("PETR3", "PETR4")
	scenario.Ticks = 900

	r := NewRunner(RunnerConfig{
		Scenario: scenario,
		Costs:    CostModel{CommissionPct: 0.05},
		Engine: engine.Config{
			ONSymbol: "PETR3",
			PNSymbol: "PETR4",
			Analyzer: engine.AnalyzerConfig{MinPremiumThreshold: 0.30, MaxSpreadCost: 0.20, MinVolume: 10000},
			Decision: engine.DecisionConfig{
				MinPremiumThreshold: 0.30, SwapThreshold: 0.10,
				TakeProfitThreshold: 0.80, StopLossThreshold: -2.0,
				ConfidenceThreshold: 0.70,
			},
		},
		PositionSize:        100,
		ConfidenceThreshold: 0.70,
		MaxSlippage:         0.5,
		InitialCapital:      100_000,
	}, nil)

	m, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 900, m.Decisions)
	assert.Len(t, m.EquityCurve, 900)
	assert.GreaterOrEqual(t, m.Trades, 1, "a full premium wave must produce at least one round trip")
	assert.Positive(t, m.FinalEquity)
	assert.GreaterOrEqual(t, m.MaxDrawdownPct, 0.0)
}
