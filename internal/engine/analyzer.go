// Package engine turns paired ON/PN quotes into scored opportunities and
// trading decisions. Analysis and decision-making are pure; the decision
// cycle runner owns the position state and applies accepted decisions.
package engine

import (
	"math"

	"github.com/brazilquant/swapbot/internal/domain"
)

// AnalyzerConfig holds the thresholds the analyzer scores against.
type AnalyzerConfig struct {
	// MinPremiumThreshold is the net opportunity (percent) above which an
	// opportunity counts as profitable.
	MinPremiumThreshold float64
	// MaxSpreadCost (percent) anchors the spread component of the confidence
	// score: at or above this cost the component is zero.
	MaxSpreadCost float64
	// MinVolume anchors the volume component: combined volume at twice this
	// value scores 1.0.
	MinVolume int64
}

// Analyzer scores ON/PN quote pairs. It is a pure function of its inputs and
// configuration; safe for concurrent use.
type Analyzer struct {
	cfg AnalyzerConfig
}

// NewAnalyzer creates an analyzer with the given thresholds.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze computes the PN premium over ON, the round-trip spread cost, the
// net opportunity, and a blended confidence score in [0,1].
func (a *Analyzer) Analyze(on, pn domain.Quote) domain.Opportunity {
	premium := (pn.Mid() - on.Mid()) / on.Mid() * 100
	spreadCost := on.SpreadPct() + pn.SpreadPct()
	net := premium - spreadCost

	volumeScore := math.Min(1, float64(on.Volume+pn.Volume)/float64(2*a.cfg.MinVolume))
	spreadScore := math.Max(0, 1-spreadCost/a.cfg.MaxSpreadCost)
	premiumScore := math.Min(1, math.Abs(premium)/2)

	return domain.Opportunity{
		ON:                on,
		PN:                pn,
		PremiumPN:         premium,
		SpreadCost:        spreadCost,
		NetOpportunity:    net,
		Profitable:        net > a.cfg.MinPremiumThreshold,
		ExpectedProfitPct: math.Max(0, net),
		Confidence:        0.4*volumeScore + 0.4*spreadScore + 0.2*premiumScore,
	}
}
