package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDiscovering, StateFiltering, true},
		{StateFiltering, StateNormalizing, true},
		{StateNormalizing, StateFusing, true},
		{StateFusing, StateExporting, true},
		{StateExporting, StateDone, true},
		{StateDiscovering, StateAborted, true},
		{StateExporting, StateAborted, true},
		{StateDiscovering, StateFusing, false},
		{StateFusing, StateFiltering, false},
		{StateDone, StateAborted, false},
		{StateAborted, StateDiscovering, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateExporting.Terminal())
}

func TestMachineIllegalTransitionPanics(t *testing.T) {
	sm := newMachine(nil)
	assert.Panics(t, func() { sm.advance(StateExporting) })
}

func TestMachineNotifiesObserver(t *testing.T) {
	var seen [][2]State
	sm := newMachine(func(from, to State) { seen = append(seen, [2]State{from, to}) })
	sm.advance(StateFiltering)
	sm.advance(StateAborted)

	assert.Equal(t, [][2]State{{StateDiscovering, StateFiltering}, {StateFiltering, StateAborted}}, seen)
	assert.Equal(t, []State{StateDiscovering, StateFiltering, StateAborted}, sm.history)
}
