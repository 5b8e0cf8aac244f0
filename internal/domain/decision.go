package domain

import "time"

// DecisionType enumerates the actions the decision engine can emit.
type DecisionType string

const (
	DecisionNoAction      DecisionType = "NO_ACTION"
	DecisionEnterLongON   DecisionType = "ENTER_LONG_ON"   // buy ON
	DecisionSwapToPN      DecisionType = "SWAP_TO_PN"      // sell ON, buy PN
	DecisionClosePN       DecisionType = "CLOSE_PN"        // sell PN, realize profit
	DecisionEmergencyExit DecisionType = "EMERGENCY_EXIT"  // close whatever is held
)

// PositionState is the engine's position in the ON/PN cycle. Exactly one
// value is owned by the engine at any time; transitions happen only through
// accepted decisions.
type PositionState string

const (
	StateIdle   PositionState = "IDLE"
	StateLongON PositionState = "LONG_ON"
	StateLongPN PositionState = "LONG_PN"
)

// Decision is a pure output of the decision engine: the engine never applies
// it, the caller (runner or backtest) does.
type Decision struct {
	Type           DecisionType
	Timestamp      time.Time
	CurrentState   PositionState
	TargetState    PositionState
	Opportunity    *Opportunity
	Reasoning      string
	Confidence     float64
	RiskAssessment string

	// Optional bounds, set only when the branch computes them.
	ExpectedReturn *float64
	StopLoss       *float64
	TakeProfit     *float64
}

// Actionable reports whether the decision asks for any trade at all.
func (d Decision) Actionable() bool {
	return d.Type != DecisionNoAction
}

// LegalTransition reports whether a decision may move the position from one
// state to another. The legal edges form the strict cycle
// IDLE -> LONG_ON -> LONG_PN -> IDLE, plus an emergency-exit edge from any
// non-idle state back to IDLE. NO_ACTION is legal only when it stays put.
func LegalTransition(t DecisionType, from, to PositionState) bool {
	switch t {
	case DecisionNoAction:
		return from == to
	case DecisionEnterLongON:
		return from == StateIdle && to == StateLongON
	case DecisionSwapToPN:
		return from == StateLongON && to == StateLongPN
	case DecisionClosePN:
		return from == StateLongPN && to == StateIdle
	case DecisionEmergencyExit:
		return from != StateIdle && to == StateIdle
	}
	return false
}
