package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brazilquant/swapbot/internal/domain"
	"github.com/brazilquant/swapbot/internal/engine"
	"github.com/brazilquant/swapbot/internal/executor"
)

// SwapServiceConfig holds the execution gate and sizing parameters.
type SwapServiceConfig struct {
	ONSymbol string
	PNSymbol string

	PositionSize        int64
	MaxSlippage         float64
	ConfidenceThreshold float64
	AutoExecute         bool
	LegTimeout          time.Duration
}

// SwapService runs complete trading cycles: one decision per cycle, persisted,
// and executed when the confidence gate and the auto-execute switch allow it.
type SwapService struct {
	engine   *engine.Engine
	coord    *executor.Coordinator
	legs     *executor.OrderExecutor
	recorder executor.ExecutionRecorder
	sink     domain.PersistenceSink
	cfg      SwapServiceConfig
	logger   *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewSwapService wires the decision engine to the execution machinery.
// sink and recorder may be nil when persistence is disabled.
func NewSwapService(
	eng *engine.Engine,
	coord *executor.Coordinator,
	legs *executor.OrderExecutor,
	recorder executor.ExecutionRecorder,
	sink domain.PersistenceSink,
	cfg SwapServiceConfig,
	logger *slog.Logger,
) *SwapService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = 30 * time.Second
	}
	return &SwapService{
		engine:   eng,
		coord:    coord,
		legs:     legs,
		recorder: recorder,
		sink:     sink,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "swap_service")),
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// CycleOutcome is the result of one trading cycle.
type CycleOutcome struct {
	DecisionID string
	Decision   domain.Decision
	Executed   bool
	Execution  *domain.ExecutionResult
}

// RunCycle produces one decision, persists it, and executes it when allowed.
// Execution failures never produce an error; they are carried in the
// execution result. An error means the state machine rejected the decision.
func (s *SwapService) RunCycle(ctx context.Context) (CycleOutcome, error) {
	dec := s.engine.RunDecisionCycle(ctx)
	decisionID := s.newID()

	outcome := CycleOutcome{DecisionID: decisionID, Decision: dec}

	s.persistDecision(ctx, decisionID, dec, "pending")

	if !dec.Actionable() {
		s.persistDecision(ctx, decisionID, dec, "skipped")
		return outcome, nil
	}

	if dec.Confidence < s.cfg.ConfidenceThreshold {
		s.logger.Info("decision below confidence gate",
			slog.String("decision_id", decisionID),
			slog.String("type", string(dec.Type)),
			slog.Float64("confidence", dec.Confidence),
			slog.Float64("threshold", s.cfg.ConfidenceThreshold),
		)
		s.persistDecision(ctx, decisionID, dec, "skipped")
		return outcome, nil
	}

	if !s.cfg.AutoExecute {
		s.logger.Info("auto-execute disabled, decision not traded",
			slog.String("decision_id", decisionID),
			slog.String("type", string(dec.Type)),
		)
		s.persistDecision(ctx, decisionID, dec, "skipped")
		return outcome, nil
	}

	res, err := s.executeDecision(ctx, decisionID, dec)
	if err != nil {
		s.persistDecision(ctx, decisionID, dec, "failed")
		return outcome, err
	}

	outcome.Executed = true
	outcome.Execution = res
	return outcome, nil
}

// executeDecision maps a decision onto its legs, runs them, and applies the
// state transition when the trade succeeded.
func (s *SwapService) executeDecision(ctx context.Context, decisionID string, dec domain.Decision) (*domain.ExecutionResult, error) {
	switch dec.Type {
	case domain.DecisionEnterLongON:
		return s.singleLeg(ctx, decisionID, dec, s.cfg.ONSymbol, domain.OrderSideBuy, s.cfg.PositionSize)

	case domain.DecisionSwapToPN:
		pos := s.engine.Position()
		if pos == nil {
			return nil, fmt.Errorf("swap_service: swap decision with no open position")
		}
		res := s.coord.ExecuteSwap(ctx, decisionID, s.cfg.ONSymbol, s.cfg.PNSymbol, pos.Quantity, s.cfg.MaxSlippage)
		if res.Status == domain.StatusFilled && res.BuyOrder != nil {
			if err := s.engine.Apply(dec, res.BuyOrder.FilledQuantity, res.BuyOrder.AvgFillPrice); err != nil {
				return &res, fmt.Errorf("swap_service: apply swap: %w", err)
			}
		}
		return &res, nil

	case domain.DecisionClosePN, domain.DecisionEmergencyExit:
		pos := s.engine.Position()
		if pos == nil {
			return nil, fmt.Errorf("swap_service: close decision with no open position")
		}
		return s.singleLeg(ctx, decisionID, dec, pos.Symbol, domain.OrderSideSell, pos.Quantity)

	default:
		return nil, fmt.Errorf("swap_service: unexpected decision type %s", dec.Type)
	}
}

// singleLeg executes a one-leg decision (entry or close) through the leg
// executor and wraps the outcome in an ExecutionResult so persistence and
// callers see one shape regardless of leg count.
func (s *SwapService) singleLeg(ctx context.Context, decisionID string, dec domain.Decision, symbol string, side domain.OrderSide, quantity int64) (*domain.ExecutionResult, error) {
	executionID := fmt.Sprintf("exec_%s_%s", s.now().Format("20060102_150405"), decisionID[:8])

	req := domain.OrderRequest{
		OrderID:     fmt.Sprintf("order_%s_%s", executionID, side),
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		MaxSlippage: s.cfg.MaxSlippage,
		Timeout:     s.cfg.LegTimeout,
	}

	legRes, retries := s.legs.Execute(ctx, req, executionID)

	res := domain.ExecutionResult{
		DecisionID:  decisionID,
		ExecutionID: executionID,
		RetryCount:  retries,
	}
	if side == domain.OrderSideSell {
		res.SellSymbol = symbol
		res.SellOrder = &legRes
	} else {
		res.BuySymbol = symbol
		res.BuyOrder = &legRes
	}

	if legRes.Filled() {
		res.Status = domain.StatusFilled
		res.TotalFilledValue = legRes.FilledValue()
		res.TotalCommission = legRes.Commission
		if err := s.engine.Apply(dec, legRes.FilledQuantity, legRes.AvgFillPrice); err != nil {
			return &res, fmt.Errorf("swap_service: apply %s: %w", dec.Type, err)
		}
	} else {
		res.Status = domain.StatusFailed
		res.ErrorDetails = &domain.ErrorDetails{
			Reason:    fmt.Sprintf("%s leg failed", side),
			LegStatus: legRes.Status,
			Message:   legRes.ErrorMessage,
		}
	}

	if s.recorder != nil {
		s.recorder.RecordExecution(ctx, res)
	}

	return &res, nil
}

// persistDecision saves the decision row. Persistence failures are logged and
// swallowed; the trading path never depends on the database being up.
func (s *SwapService) persistDecision(ctx context.Context, decisionID string, dec domain.Decision, status string) {
	if s.sink == nil {
		return
	}

	rec := domain.DecisionRecord{
		DecisionID:    decisionID,
		StrategyID:    "on_pn_swap",
		Timestamp:     dec.Timestamp,
		FromSymbol:    s.cfg.ONSymbol,
		ToSymbol:      s.cfg.PNSymbol,
		DecisionType:  dec.Type,
		TriggerReason: dec.Reasoning,
		CurrentState:  dec.CurrentState,
		TargetState:   dec.TargetState,
		Status:        status,
	}
	conf := dec.Confidence
	rec.Confidence = &conf
	if dec.Opportunity != nil {
		premium := dec.Opportunity.PremiumPN
		spread := dec.Opportunity.SpreadCost
		net := dec.Opportunity.NetOpportunity
		rec.PremiumPN = &premium
		rec.SpreadCost = &spread
		rec.NetOpportunity = &net
	}
	rec.ExpectedProfit = dec.ExpectedReturn
	rec.TakeProfit = dec.TakeProfit
	rec.StopLoss = dec.StopLoss

	if err := s.sink.SaveDecision(ctx, rec); err != nil {
		s.logger.Warn("decision persist failed",
			slog.String("decision_id", decisionID),
			slog.String("error", err.Error()),
		)
	}
}
