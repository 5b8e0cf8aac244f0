package domain

import "time"

// Quote is an immutable snapshot of one instrument's top of book, produced by
// the market data provider.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Volume    int64
	Timestamp time.Time
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Spread returns the absolute bid/ask spread.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// SpreadPct returns the spread as a percentage of the bid. Zero when the bid
// is not positive, so a bad quote cannot poison downstream ratios.
func (q Quote) SpreadPct() float64 {
	if q.Bid <= 0 {
		return 0
	}
	return q.Spread() / q.Bid * 100
}
