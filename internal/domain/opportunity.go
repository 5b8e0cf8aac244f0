package domain

// Opportunity is a scored ON/PN arbitrage opportunity derived from two
// simultaneous quotes. Created fresh for every decision cycle, never mutated.
type Opportunity struct {
	ON Quote // common shares
	PN Quote // preferred shares

	// PremiumPN is the premium of PN over the ON mid price, in percent.
	PremiumPN float64
	// SpreadCost is the combined spread of both legs, in percent.
	SpreadCost float64
	// NetOpportunity is PremiumPN minus SpreadCost, in percent.
	NetOpportunity float64

	Profitable        bool
	ExpectedProfitPct float64
	// Confidence is a score in [0,1] blending volume, spread and premium.
	Confidence float64
}
