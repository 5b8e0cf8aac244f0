package domain

import "time"

// Position is the currently held position, if any. UnrealizedPnLPct is
// refreshed by the decision cycle from the latest mid price.
type Position struct {
	Symbol           string
	Quantity         int64
	EntryPrice       float64
	EntryTime        time.Time
	CurrentPrice     float64
	UnrealizedPnLPct float64
	State            PositionState
}

// MarkToMarket updates the current price and the unrealized P&L percentage.
func (p *Position) MarkToMarket(price float64) {
	p.CurrentPrice = price
	if p.EntryPrice > 0 {
		p.UnrealizedPnLPct = (price - p.EntryPrice) / p.EntryPrice * 100
	}
}
