package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brazilquant/swapbot/internal/domain"
)

// fakeProvider serves quotes from an in-memory map and can fail on demand.
type fakeProvider struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	err    error
}

func (p *fakeProvider) GetQuote(_ context.Context, symbol string) (domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return domain.Quote{}, p.err
	}
	q, ok := p.quotes[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%s: %w", symbol, domain.ErrDataUnavailable)
	}
	return q, nil
}

func (p *fakeProvider) set(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = domain.Quote{Symbol: symbol, Bid: price, Ask: price, Volume: 20000}
}

func testEngineConfig() Config {
	return Config{
		ONSymbol: "PETR3",
		PNSymbol: "PETR4",
		Analyzer: testAnalyzerConfig(),
		Decision: testDecisionConfig(),
	}
}

func TestRunDecisionCycle_DataUnavailable(t *testing.T) {
	p := &fakeProvider{quotes: map[string]domain.Quote{}, err: domain.ErrDataUnavailable}
	e := New(p, testEngineConfig(), nil)

	dec := e.RunDecisionCycle(context.Background())

	assert.Equal(t, domain.DecisionNoAction, dec.Type)
	assert.Zero(t, dec.Confidence)
	assert.Equal(t, "market data unavailable", dec.Reasoning)
	assert.Equal(t, domain.StateIdle, e.State())
	assert.Len(t, e.History(), 1)
}

func TestApply_RejectsStaleDecision(t *testing.T) {
	p := &fakeProvider{quotes: map[string]domain.Quote{}}
	e := New(p, testEngineConfig(), nil)

	stale := domain.Decision{
		Type:         domain.DecisionSwapToPN,
		CurrentState: domain.StateLongON,
		TargetState:  domain.StateLongPN,
	}
	err := e.Apply(stale, 100, 35)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale decision")
	assert.Equal(t, domain.StateIdle, e.State())
}

func TestApply_RejectsIllegalTransition(t *testing.T) {
	p := &fakeProvider{quotes: map[string]domain.Quote{}}
	e := New(p, testEngineConfig(), nil)

	bad := domain.Decision{
		Type:         domain.DecisionClosePN,
		CurrentState: domain.StateIdle,
		TargetState:  domain.StateIdle,
	}
	err := e.Apply(bad, 100, 35)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal transition")
}

// TestEngine_FullCycle drives the engine through the whole
// IDLE -> LONG_ON -> LONG_PN -> IDLE cycle off live-shaped quotes.
func TestEngine_FullCycle(t *testing.T) {
	p := &fakeProvider{quotes: map[string]domain.Quote{}}
	p.set("PETR3", 100)
	p.set("PETR4", 100.5)

	e := New(p, testEngineConfig(), nil)
	ctx := context.Background()

	// Premium 0.5%, zero spread: entry fires.
	enter := e.RunDecisionCycle(ctx)
	require.Equal(t, domain.DecisionEnterLongON, enter.Type)
	require.NoError(t, e.Apply(enter, 100, 100))
	assert.Equal(t, domain.StateLongON, e.State())

	pos := e.Position()
	require.NotNil(t, pos)
	assert.Equal(t, "PETR3", pos.Symbol)
	assert.Equal(t, int64(100), pos.Quantity)

	// Premium still above the swap threshold: swap to PN.
	swap := e.RunDecisionCycle(ctx)
	require.Equal(t, domain.DecisionSwapToPN, swap.Type)
	require.NoError(t, e.Apply(swap, 99, 100.5))
	assert.Equal(t, domain.StateLongPN, e.State())
	assert.Equal(t, "PETR4", e.Position().Symbol)

	// PN rallies ~1%: take profit closes the position.
	p.set("PETR4", 101.5)
	closeDec := e.RunDecisionCycle(ctx)
	require.Equal(t, domain.DecisionClosePN, closeDec.Type)
	require.NoError(t, e.Apply(closeDec, 99, 101.5))

	assert.Equal(t, domain.StateIdle, e.State())
	assert.Nil(t, e.Position())
	assert.Len(t, e.History(), 3)
}

func TestEngine_MarkToMarketDuringCycle(t *testing.T) {
	p := &fakeProvider{quotes: map[string]domain.Quote{}}
	p.set("PETR3", 100)
	p.set("PETR4", 100) // flat premium, no swap pressure

	e := New(p, testEngineConfig(), nil)
	e.SetPosition(domain.StateLongON, &domain.Position{
		Symbol: "PETR3", Quantity: 100, EntryPrice: 102,
		CurrentPrice: 102, State: domain.StateLongON,
	})

	// Mid 100 against entry 102 is about -1.96%, inside the stop.
	dec := e.RunDecisionCycle(context.Background())
	assert.NotEqual(t, domain.DecisionEmergencyExit, dec.Type)

	p.set("PETR3", 99)
	p.set("PETR4", 99)
	dec = e.RunDecisionCycle(context.Background())
	require.Equal(t, domain.DecisionEmergencyExit, dec.Type)
	require.NoError(t, e.Apply(dec, 100, 99))
	assert.Equal(t, domain.StateIdle, e.State())
}
