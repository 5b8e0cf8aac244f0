package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brazilquant/swapbot/internal/domain"
)

func testAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MinPremiumThreshold: 0.30,
		MaxSpreadCost:       0.20,
		MinVolume:           10000,
	}
}

func TestAnalyze_ProfitableOpportunity(t *testing.T) {
	a := NewAnalyzer(testAnalyzerConfig())

	// Zero-spread book keeps the arithmetic exact: premium 0.5%, no spread
	// cost, full volume.
	on := domain.Quote{Symbol: "PETR3", Bid: 100, Ask: 100, Volume: 20000}
	pn := domain.Quote{Symbol: "PETR4", Bid: 100.5, Ask: 100.5, Volume: 20000}

	opp := a.Analyze(on, pn)

	assert.InDelta(t, 0.5, opp.PremiumPN, 1e-9)
	assert.InDelta(t, 0.0, opp.SpreadCost, 1e-9)
	assert.InDelta(t, 0.5, opp.NetOpportunity, 1e-9)
	assert.True(t, opp.Profitable)
	assert.InDelta(t, 0.5, opp.ExpectedProfitPct, 1e-9)

	// volume_score=1, spread_score=1, premium_score=0.25.
	assert.InDelta(t, 0.4*1+0.4*1+0.2*0.25, opp.Confidence, 1e-9)
}

func TestAnalyze_SpreadCostEatsThePremium(t *testing.T) {
	a := NewAnalyzer(testAnalyzerConfig())

	// 0.35% raw premium but each side quotes a wide book.
	on := domain.Quote{Symbol: "PETR3", Bid: 100, Ask: 100.20, Volume: 20000}
	pn := domain.Quote{Symbol: "PETR4", Bid: 100.35, Ask: 100.55, Volume: 20000}

	opp := a.Analyze(on, pn)

	assert.Greater(t, opp.SpreadCost, a.cfg.MaxSpreadCost)
	assert.False(t, opp.Profitable)
	assert.Zero(t, opp.ExpectedProfitPct)

	// spread_score clamps at zero; confidence loses that whole component.
	assert.Less(t, opp.Confidence, 0.7)
}

func TestAnalyze_NegativePremium(t *testing.T) {
	a := NewAnalyzer(testAnalyzerConfig())

	on := domain.Quote{Symbol: "PETR3", Bid: 101, Ask: 101, Volume: 20000}
	pn := domain.Quote{Symbol: "PETR4", Bid: 100, Ask: 100, Volume: 20000}

	opp := a.Analyze(on, pn)

	assert.Less(t, opp.PremiumPN, 0.0)
	assert.False(t, opp.Profitable)
	assert.Zero(t, opp.ExpectedProfitPct)
	// premium_score uses the magnitude, so an inverted premium still
	// contributes to confidence.
	assert.Greater(t, opp.Confidence, 0.8)
}

func TestAnalyze_ThinVolume(t *testing.T) {
	a := NewAnalyzer(testAnalyzerConfig())

	on := domain.Quote{Symbol: "PETR3", Bid: 100, Ask: 100, Volume: 2500}
	pn := domain.Quote{Symbol: "PETR4", Bid: 100.5, Ask: 100.5, Volume: 2500}

	opp := a.Analyze(on, pn)

	// volume_score = 5000 / 20000 = 0.25.
	assert.InDelta(t, 0.4*0.25+0.4*1+0.2*0.25, opp.Confidence, 1e-9)
}

func TestAnalyze_ConfidenceBounded(t *testing.T) {
	a := NewAnalyzer(testAnalyzerConfig())

	// Huge volume and huge premium must not push any component past 1.
	on := domain.Quote{Symbol: "PETR3", Bid: 100, Ask: 100, Volume: 10_000_000}
	pn := domain.Quote{Symbol: "PETR4", Bid: 110, Ask: 110, Volume: 10_000_000}

	opp := a.Analyze(on, pn)
	assert.InDelta(t, 1.0, opp.Confidence, 1e-9)
}
