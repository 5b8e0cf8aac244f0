package engine

import (
	"fmt"
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
)

// DecisionConfig holds the state machine's entry/swap/exit thresholds, all in
// percent except ConfidenceThreshold.
type DecisionConfig struct {
	MinPremiumThreshold float64
	SwapThreshold       float64
	TakeProfitThreshold float64
	StopLossThreshold   float64
	ConfidenceThreshold float64
}

// premiumDegradationFloor closes a PN position outright when the premium
// inverts this far, regardless of unrealized P&L.
const premiumDegradationFloor = -0.5

// DecisionEngine is the finite state machine that maps (position state,
// opportunity) to exactly one decision. It holds no state of its own; the
// caller supplies the current state and position and applies the transition.
type DecisionEngine struct {
	cfg DecisionConfig
	now func() time.Time
}

// NewDecisionEngine creates the decision state machine.
func NewDecisionEngine(cfg DecisionConfig) *DecisionEngine {
	return &DecisionEngine{cfg: cfg, now: time.Now}
}

// Decide returns exactly one populated decision for the given state. A nil
// position is treated as flat. The engine never errors: undefined states
// produce a zero-confidence NO_ACTION.
func (e *DecisionEngine) Decide(state domain.PositionState, pos *domain.Position, opp domain.Opportunity) domain.Decision {
	switch state {
	case domain.StateIdle:
		return e.decideIdle(opp)
	case domain.StateLongON:
		return e.decideLongON(pos, opp)
	case domain.StateLongPN:
		return e.decideLongPN(pos, opp)
	}

	// Defensive fallback; unreachable with a correct caller.
	return domain.Decision{
		Type:           domain.DecisionNoAction,
		Timestamp:      e.now(),
		CurrentState:   state,
		TargetState:    state,
		Opportunity:    &opp,
		Reasoning:      "unknown position state",
		Confidence:     0,
		RiskAssessment: "system error",
	}
}

func (e *DecisionEngine) decideIdle(opp domain.Opportunity) domain.Decision {
	if opp.Profitable &&
		opp.Confidence >= e.cfg.ConfidenceThreshold &&
		opp.NetOpportunity >= e.cfg.MinPremiumThreshold {

		expected := opp.ExpectedProfitPct
		takeProfit := opp.ON.Mid() * (1 + e.cfg.TakeProfitThreshold/100)
		stopLoss := opp.ON.Mid() * (1 + e.cfg.StopLossThreshold/100)

		return domain.Decision{
			Type:         domain.DecisionEnterLongON,
			Timestamp:    e.now(),
			CurrentState: domain.StateIdle,
			TargetState:  domain.StateLongON,
			Opportunity:  &opp,
			Reasoning: fmt.Sprintf("premium PN %.2f%% > threshold %.2f%%",
				opp.PremiumPN, e.cfg.MinPremiumThreshold),
			Confidence:     opp.Confidence,
			RiskAssessment: "low risk entry",
			ExpectedReturn: &expected,
			TakeProfit:     &takeProfit,
			StopLoss:       &stopLoss,
		}
	}

	return domain.Decision{
		Type:         domain.DecisionNoAction,
		Timestamp:    e.now(),
		CurrentState: domain.StateIdle,
		TargetState:  domain.StateIdle,
		Opportunity:  &opp,
		Reasoning: fmt.Sprintf("no entry: premium %.2f%%, confidence %.2f",
			opp.PremiumPN, opp.Confidence),
		Confidence:     opp.Confidence,
		RiskAssessment: "waiting for better opportunity",
	}
}

func (e *DecisionEngine) decideLongON(pos *domain.Position, opp domain.Opportunity) domain.Decision {
	if opp.PremiumPN >= e.cfg.SwapThreshold && opp.Confidence >= e.cfg.ConfidenceThreshold {
		expected := opp.ExpectedProfitPct
		return domain.Decision{
			Type:         domain.DecisionSwapToPN,
			Timestamp:    e.now(),
			CurrentState: domain.StateLongON,
			TargetState:  domain.StateLongPN,
			Opportunity:  &opp,
			Reasoning: fmt.Sprintf("swap opportunity: premium %.2f%% >= %.2f%%",
				opp.PremiumPN, e.cfg.SwapThreshold),
			Confidence:     opp.Confidence,
			RiskAssessment: "medium risk swap",
			ExpectedReturn: &expected,
		}
	}

	if pos != nil && pos.UnrealizedPnLPct <= e.cfg.StopLossThreshold {
		return domain.Decision{
			Type:         domain.DecisionEmergencyExit,
			Timestamp:    e.now(),
			CurrentState: domain.StateLongON,
			TargetState:  domain.StateIdle,
			Opportunity:  &opp,
			Reasoning: fmt.Sprintf("stop loss triggered: %.2f%%",
				pos.UnrealizedPnLPct),
			Confidence:     1,
			RiskAssessment: "emergency exit",
		}
	}

	return domain.Decision{
		Type:         domain.DecisionNoAction,
		Timestamp:    e.now(),
		CurrentState: domain.StateLongON,
		TargetState:  domain.StateLongON,
		Opportunity:  &opp,
		Reasoning: fmt.Sprintf("hold ON position: premium %.2f%% < swap threshold",
			opp.PremiumPN),
		Confidence:     opp.Confidence,
		RiskAssessment: "holding position",
	}
}

func (e *DecisionEngine) decideLongPN(pos *domain.Position, opp domain.Opportunity) domain.Decision {
	if pos != nil && pos.UnrealizedPnLPct >= e.cfg.TakeProfitThreshold {
		ret := pos.UnrealizedPnLPct
		return domain.Decision{
			Type:         domain.DecisionClosePN,
			Timestamp:    e.now(),
			CurrentState: domain.StateLongPN,
			TargetState:  domain.StateIdle,
			Opportunity:  &opp,
			Reasoning: fmt.Sprintf("take profit: %.2f%% >= %.2f%%",
				pos.UnrealizedPnLPct, e.cfg.TakeProfitThreshold),
			Confidence:     1,
			RiskAssessment: "profit realization",
			ExpectedReturn: &ret,
		}
	}

	if opp.PremiumPN < premiumDegradationFloor {
		return domain.Decision{
			Type:         domain.DecisionClosePN,
			Timestamp:    e.now(),
			CurrentState: domain.StateLongPN,
			TargetState:  domain.StateIdle,
			Opportunity:  &opp,
			Reasoning: fmt.Sprintf("premium degradation: %.2f%% < %.1f%%",
				opp.PremiumPN, premiumDegradationFloor),
			Confidence:     0.8,
			RiskAssessment: "risk mitigation",
		}
	}

	return domain.Decision{
		Type:         domain.DecisionNoAction,
		Timestamp:    e.now(),
		CurrentState: domain.StateLongPN,
		TargetState:  domain.StateLongPN,
		Opportunity:  &opp,
		Reasoning: fmt.Sprintf("hold PN position: premium %.2f%%",
			opp.PremiumPN),
		Confidence:     opp.Confidence,
		RiskAssessment: "monitoring position",
	}
}
