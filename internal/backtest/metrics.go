package backtest

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metrics summarizes a backtest run.
type Metrics struct {
	InitialCapital float64
	FinalEquity    float64
	TotalReturnPct float64

	Decisions int
	Trades    int
	Wins      int
	HitRate   float64

	ProfitFactor   float64
	MaxDrawdownPct float64

	Sharpe  float64
	Sortino float64
	VaR95   float64
	CVaR95  float64

	// Per-trade favorable and adverse excursion extremes, in currency.
	MaxFavorableExcursion float64
	MaxAdverseExcursion   float64

	EquityCurve []float64
}

// computeMetrics derives the summary from the tick-level equity curve and the
// per-trade results.
func computeMetrics(initial float64, equity []float64, trades []tradeResult, decisions int) Metrics {
	m := Metrics{
		InitialCapital: initial,
		Decisions:      decisions,
		Trades:         len(trades),
		EquityCurve:    equity,
	}
	if len(equity) == 0 {
		m.FinalEquity = initial
		return m
	}

	m.FinalEquity = equity[len(equity)-1]
	m.TotalReturnPct = (m.FinalEquity - initial) / initial * 100

	grossWin, grossLoss := 0.0, 0.0
	for _, t := range trades {
		if t.pnl > 0 {
			m.Wins++
			grossWin += t.pnl
		} else {
			grossLoss += -t.pnl
		}
		if t.mfe > m.MaxFavorableExcursion {
			m.MaxFavorableExcursion = t.mfe
		}
		if t.mae < m.MaxAdverseExcursion {
			m.MaxAdverseExcursion = t.mae
		}
	}
	if len(trades) > 0 {
		m.HitRate = float64(m.Wins) / float64(len(trades))
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	m.MaxDrawdownPct = maxDrawdownPct(equity)

	returns := tickReturns(equity)
	if len(returns) > 1 {
		mean := stat.Mean(returns, nil)
		sd := stat.StdDev(returns, nil)
		if sd > 0 {
			m.Sharpe = mean / sd * math.Sqrt(252)
		}
		if dd := downsideDeviation(returns); dd > 0 {
			m.Sortino = mean / dd * math.Sqrt(252)
		}

		sorted := make([]float64, len(returns))
		copy(sorted, returns)
		sort.Float64s(sorted)
		m.VaR95 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
		m.CVaR95 = tailMean(sorted, 0.05)
	}

	return m
}

// tickReturns converts the equity curve into per-tick fractional returns.
func tickReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
		}
	}
	return returns
}

// downsideDeviation is the root mean square of negative returns only.
func downsideDeviation(returns []float64) float64 {
	sum, n := 0.0, 0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// tailMean averages the worst q fraction of the sorted returns.
func tailMean(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	count := int(math.Ceil(float64(len(sorted)) * q))
	if count < 1 {
		count = 1
	}
	if count > len(sorted) {
		count = len(sorted)
	}
	sum := 0.0
	for _, r := range sorted[:count] {
		sum += r
	}
	return sum / float64(count)
}

// maxDrawdownPct finds the deepest peak-to-trough decline in percent.
func maxDrawdownPct(equity []float64) float64 {
	peak, maxDD := math.Inf(-1), 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			dd := (peak - e) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
