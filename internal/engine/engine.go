package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brazilquant/swapbot/internal/domain"
)

// Config configures the decision cycle runner.
type Config struct {
	ONSymbol string
	PNSymbol string

	Analyzer AnalyzerConfig
	Decision DecisionConfig
}

// Engine owns the position state machine and runs decision cycles: fetch
// both quotes, score the opportunity, mark the position to market, and emit
// one decision. The cycle itself mutates nothing but the mark-to-market;
// transitions happen only when a caller applies an accepted decision.
type Engine struct {
	provider domain.MarketDataProvider
	analyzer *Analyzer
	decider  *DecisionEngine
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	state    domain.PositionState
	position *domain.Position
	history  []domain.Decision

	now func() time.Time
}

// New creates an engine starting flat (IDLE).
func New(provider domain.MarketDataProvider, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: provider,
		analyzer: NewAnalyzer(cfg.Analyzer),
		decider:  NewDecisionEngine(cfg.Decision),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "decision_engine")),
		state:    domain.StateIdle,
		now:      time.Now,
	}
}

// RunDecisionCycle fetches both quotes concurrently, analyzes the
// opportunity and returns one decision. A failed quote fetch yields a
// NO_ACTION decision with zero confidence rather than an error.
func (e *Engine) RunDecisionCycle(ctx context.Context) domain.Decision {
	var on, pn domain.Quote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		on, err = e.provider.GetQuote(gctx, e.cfg.ONSymbol)
		return err
	})
	g.Go(func() error {
		var err error
		pn, err = e.provider.GetQuote(gctx, e.cfg.PNSymbol)
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Error("quote fetch failed", slog.String("error", err.Error()))
		e.mu.Lock()
		dec := domain.Decision{
			Type:           domain.DecisionNoAction,
			Timestamp:      e.now(),
			CurrentState:   e.state,
			TargetState:    e.state,
			Reasoning:      "market data unavailable",
			Confidence:     0,
			RiskAssessment: "system error",
		}
		e.history = append(e.history, dec)
		e.mu.Unlock()
		return dec
	}

	opp := e.analyzer.Analyze(on, pn)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.position != nil {
		switch e.state {
		case domain.StateLongON:
			e.position.MarkToMarket(on.Mid())
		case domain.StateLongPN:
			e.position.MarkToMarket(pn.Mid())
		}
	}

	dec := e.decider.Decide(e.state, e.position, opp)
	e.history = append(e.history, dec)

	e.logger.Info("decision cycle",
		slog.String("decision", string(dec.Type)),
		slog.String("reasoning", dec.Reasoning),
		slog.Float64("premium_pn", opp.PremiumPN),
		slog.Float64("confidence", dec.Confidence),
	)
	return dec
}

// Apply transitions the position state machine according to an accepted
// decision, given the executed quantity and entry price. Illegal transitions
// are rejected.
func (e *Engine) Apply(dec domain.Decision, quantity int64, fillPrice float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dec.CurrentState != e.state {
		return fmt.Errorf("stale decision: engine in %s, decision from %s", e.state, dec.CurrentState)
	}
	if !domain.LegalTransition(dec.Type, e.state, dec.TargetState) {
		return fmt.Errorf("illegal transition %s: %s -> %s", dec.Type, e.state, dec.TargetState)
	}

	switch dec.Type {
	case domain.DecisionNoAction:
		return nil
	case domain.DecisionEnterLongON:
		e.position = &domain.Position{
			Symbol:       e.cfg.ONSymbol,
			Quantity:     quantity,
			EntryPrice:   fillPrice,
			EntryTime:    dec.Timestamp,
			CurrentPrice: fillPrice,
			State:        domain.StateLongON,
		}
	case domain.DecisionSwapToPN:
		e.position = &domain.Position{
			Symbol:       e.cfg.PNSymbol,
			Quantity:     quantity,
			EntryPrice:   fillPrice,
			EntryTime:    dec.Timestamp,
			CurrentPrice: fillPrice,
			State:        domain.StateLongPN,
		}
	case domain.DecisionClosePN, domain.DecisionEmergencyExit:
		e.position = nil
	}

	e.state = dec.TargetState
	return nil
}

// State returns the current position state.
func (e *Engine) State() domain.PositionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Position returns a copy of the current position, or nil when flat.
func (e *Engine) Position() *domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.position == nil {
		return nil
	}
	p := *e.position
	return &p
}

// History returns a copy of every decision emitted so far, in order.
func (e *Engine) History() []domain.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Decision, len(e.history))
	copy(out, e.history)
	return out
}

// SetPosition force-sets the position state. Used by the backtest runner to
// replay historical state; not part of the live trading path.
func (e *Engine) SetPosition(state domain.PositionState, pos *domain.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.position = pos
}
