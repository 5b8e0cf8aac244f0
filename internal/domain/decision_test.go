package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegalTransition_StrictCycle(t *testing.T) {
	// The only legal actionable edges.
	assert.True(t, LegalTransition(DecisionEnterLongON, StateIdle, StateLongON))
	assert.True(t, LegalTransition(DecisionSwapToPN, StateLongON, StateLongPN))
	assert.True(t, LegalTransition(DecisionClosePN, StateLongPN, StateIdle))

	// Emergency exit: any non-idle state back to idle.
	assert.True(t, LegalTransition(DecisionEmergencyExit, StateLongON, StateIdle))
	assert.True(t, LegalTransition(DecisionEmergencyExit, StateLongPN, StateIdle))
	assert.False(t, LegalTransition(DecisionEmergencyExit, StateIdle, StateIdle))
}

func TestLegalTransition_RejectsEverythingElse(t *testing.T) {
	states := []PositionState{StateIdle, StateLongON, StateLongPN}
	legal := map[[2]PositionState]DecisionType{
		{StateIdle, StateLongON}:   DecisionEnterLongON,
		{StateLongON, StateLongPN}: DecisionSwapToPN,
		{StateLongPN, StateIdle}:   DecisionClosePN,
	}

	types := []DecisionType{DecisionEnterLongON, DecisionSwapToPN, DecisionClosePN}
	for _, dt := range types {
		for _, from := range states {
			for _, to := range states {
				want := legal[[2]PositionState{from, to}] == dt
				assert.Equal(t, want, LegalTransition(dt, from, to),
					"%s: %s -> %s", dt, from, to)
			}
		}
	}
}

func TestLegalTransition_NoActionStaysPut(t *testing.T) {
	for _, s := range []PositionState{StateIdle, StateLongON, StateLongPN} {
		assert.True(t, LegalTransition(DecisionNoAction, s, s))
	}
	assert.False(t, LegalTransition(DecisionNoAction, StateIdle, StateLongON))
	assert.False(t, LegalTransition(DecisionNoAction, StateLongON, StateIdle))
}

func TestDecisionActionable(t *testing.T) {
	assert.False(t, Decision{Type: DecisionNoAction}.Actionable())
	assert.True(t, Decision{Type: DecisionEnterLongON}.Actionable())
	assert.True(t, Decision{Type: DecisionEmergencyExit}.Actionable())
}
