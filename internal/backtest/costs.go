// Package backtest replays the decision engine and the execution machinery
// over generated market data, with a simulated gateway standing in for the
// terminal bridge.
package backtest

// CostModel prices the frictions a simulated fill pays.
type CostModel struct {
	// CommissionPct is charged on each leg's filled value (0.05 means 0.05%).
	CommissionPct float64

	// SlippagePct worsens each fill price against the trade direction.
	SlippagePct float64
}

// Commission returns the commission charged on a filled value.
func (m CostModel) Commission(filledValue float64) float64 {
	return filledValue * m.CommissionPct / 100
}

// FillPrice worsens the quoted price by the slippage assumption. Buys pay
// more, sells receive less.
func (m CostModel) FillPrice(quoted float64, buy bool) float64 {
	adj := quoted * m.SlippagePct / 100
	if buy {
		return quoted + adj
	}
	return quoted - adj
}
