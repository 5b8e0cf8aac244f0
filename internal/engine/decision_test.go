package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brazilquant/swapbot/internal/domain"
)

func testDecisionConfig() DecisionConfig {
	return DecisionConfig{
		MinPremiumThreshold: 0.30,
		SwapThreshold:       0.10,
		TakeProfitThreshold: 0.80,
		StopLossThreshold:   -2.0,
		ConfidenceThreshold: 0.70,
	}
}

func opportunity(premium, spreadCost, confidence float64) domain.Opportunity {
	net := premium - spreadCost
	return domain.Opportunity{
		ON:                domain.Quote{Symbol: "PETR3", Bid: 35, Ask: 35, Volume: 20000},
		PN:                domain.Quote{Symbol: "PETR4", Bid: 35, Ask: 35, Volume: 20000},
		PremiumPN:         premium,
		SpreadCost:        spreadCost,
		NetOpportunity:    net,
		Profitable:        net > 0.30,
		ExpectedProfitPct: max(0, net),
		Confidence:        confidence,
	}
}

func TestDecideIdle_Entry(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())

	dec := e.Decide(domain.StateIdle, nil, opportunity(0.45, 0.10, 0.80))

	assert.Equal(t, domain.DecisionEnterLongON, dec.Type)
	assert.Equal(t, domain.StateIdle, dec.CurrentState)
	assert.Equal(t, domain.StateLongON, dec.TargetState)
	assert.InDelta(t, 0.80, dec.Confidence, 1e-9)

	// Take-profit/stop-loss are percentage offsets from the ON mid (35.00).
	require.NotNil(t, dec.TakeProfit)
	require.NotNil(t, dec.StopLoss)
	assert.InDelta(t, 35*1.008, *dec.TakeProfit, 1e-9)
	assert.InDelta(t, 35*0.98, *dec.StopLoss, 1e-9)
}

func TestDecideIdle_NoEntryOnLowConfidence(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())

	dec := e.Decide(domain.StateIdle, nil, opportunity(0.45, 0.10, 0.65))

	assert.Equal(t, domain.DecisionNoAction, dec.Type)
	assert.Equal(t, domain.StateIdle, dec.TargetState)
}

func TestDecideIdle_NoEntryBelowNetThreshold(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())

	// Premium is fine but the spread cost drags the net below 0.30.
	dec := e.Decide(domain.StateIdle, nil, opportunity(0.40, 0.15, 0.90))

	assert.Equal(t, domain.DecisionNoAction, dec.Type)
}

func TestDecideLongON_Swap(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())
	pos := &domain.Position{Symbol: "PETR3", Quantity: 100, EntryPrice: 35, State: domain.StateLongON}

	dec := e.Decide(domain.StateLongON, pos, opportunity(0.15, 0.05, 0.75))

	assert.Equal(t, domain.DecisionSwapToPN, dec.Type)
	assert.Equal(t, domain.StateLongPN, dec.TargetState)
}

func TestDecideLongON_StopLoss(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())
	pos := &domain.Position{
		Symbol: "PETR3", Quantity: 100, EntryPrice: 35,
		UnrealizedPnLPct: -2.5, State: domain.StateLongON,
	}

	// Premium below the swap threshold, so the loss guard fires.
	dec := e.Decide(domain.StateLongON, pos, opportunity(0.05, 0.05, 0.90))

	assert.Equal(t, domain.DecisionEmergencyExit, dec.Type)
	assert.Equal(t, domain.StateIdle, dec.TargetState)
	assert.InDelta(t, 1.0, dec.Confidence, 1e-9)
}

func TestDecideLongON_Hold(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())
	pos := &domain.Position{Symbol: "PETR3", UnrealizedPnLPct: -0.5, State: domain.StateLongON}

	dec := e.Decide(domain.StateLongON, pos, opportunity(0.05, 0.05, 0.90))

	assert.Equal(t, domain.DecisionNoAction, dec.Type)
	assert.Equal(t, domain.StateLongON, dec.TargetState)
}

func TestDecideLongON_NilPositionDoesNotPanic(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())

	dec := e.Decide(domain.StateLongON, nil, opportunity(0.05, 0.05, 0.90))

	assert.Equal(t, domain.DecisionNoAction, dec.Type)
}

func TestDecideLongPN_TakeProfit(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())
	pos := &domain.Position{
		Symbol: "PETR4", Quantity: 100, EntryPrice: 35,
		UnrealizedPnLPct: 0.85, State: domain.StateLongPN,
	}

	dec := e.Decide(domain.StateLongPN, pos, opportunity(0.20, 0.05, 0.75))

	assert.Equal(t, domain.DecisionClosePN, dec.Type)
	assert.Equal(t, domain.StateIdle, dec.TargetState)
	require.NotNil(t, dec.ExpectedReturn)
	assert.InDelta(t, 0.85, *dec.ExpectedReturn, 1e-9)
}

func TestDecideLongPN_PremiumDegradation(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())
	pos := &domain.Position{Symbol: "PETR4", UnrealizedPnLPct: 0.10, State: domain.StateLongPN}

	dec := e.Decide(domain.StateLongPN, pos, opportunity(-0.60, 0.05, 0.75))

	assert.Equal(t, domain.DecisionClosePN, dec.Type)
	assert.InDelta(t, 0.8, dec.Confidence, 1e-9)
}

func TestDecideLongPN_Hold(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())
	pos := &domain.Position{Symbol: "PETR4", UnrealizedPnLPct: 0.30, State: domain.StateLongPN}

	dec := e.Decide(domain.StateLongPN, pos, opportunity(0.10, 0.05, 0.75))

	assert.Equal(t, domain.DecisionNoAction, dec.Type)
	assert.Equal(t, domain.StateLongPN, dec.TargetState)
}

func TestDecide_UnknownStateFallsBack(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())

	dec := e.Decide(domain.PositionState("BROKEN"), nil, opportunity(0.45, 0.10, 0.90))

	assert.Equal(t, domain.DecisionNoAction, dec.Type)
	assert.Zero(t, dec.Confidence)
}

// TestDecide_FullCycle walks the strict cycle with the default thresholds:
// entry on a 0.45% premium, swap once in position, close at +0.85% P&L.
func TestDecide_FullCycle(t *testing.T) {
	e := NewDecisionEngine(testDecisionConfig())

	enter := e.Decide(domain.StateIdle, nil, opportunity(0.45, 0.10, 0.80))
	require.Equal(t, domain.DecisionEnterLongON, enter.Type)
	assert.True(t, domain.LegalTransition(enter.Type, enter.CurrentState, enter.TargetState))

	onPos := &domain.Position{Symbol: "PETR3", Quantity: 100, EntryPrice: 35, State: domain.StateLongON}
	swap := e.Decide(domain.StateLongON, onPos, opportunity(0.15, 0.05, 0.75))
	require.Equal(t, domain.DecisionSwapToPN, swap.Type)
	assert.True(t, domain.LegalTransition(swap.Type, swap.CurrentState, swap.TargetState))

	pnPos := &domain.Position{
		Symbol: "PETR4", Quantity: 100, EntryPrice: 35,
		UnrealizedPnLPct: 0.85, State: domain.StateLongPN,
	}
	closeDec := e.Decide(domain.StateLongPN, pnPos, opportunity(0.10, 0.05, 0.75))
	require.Equal(t, domain.DecisionClosePN, closeDec.Type)
	assert.Equal(t, domain.StateIdle, closeDec.TargetState)
}
