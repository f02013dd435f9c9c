package pipeline

import "fmt"

// State is a run state. Runs move forward through the stages in order and
// may jump to Aborted from any non-terminal state.
type State int

const (
	StateDiscovering State = iota
	StateFiltering
	StateNormalizing
	StateFusing
	StateExporting
	StateDone
	StateAborted
)

var stateNames = [...]string{
	StateDiscovering: "discovering",
	StateFiltering:   "filtering",
	StateNormalizing: "normalizing",
	StateFusing:      "fusing",
	StateExporting:   "exporting",
	StateDone:        "done",
	StateAborted:     "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateAborted {
		return true
	}
	return to == from+1
}

// Observer is notified synchronously of every state change.
type Observer func(from, to State)

// machine tracks the current state and its history.
type machine struct {
	current  State
	history  []State
	observer Observer
}

func newMachine(observer Observer) *machine {
	return &machine{current: StateDiscovering, history: []State{StateDiscovering}, observer: observer}
}

// advance moves to the next state. An illegal move is a programming error.
func (m *machine) advance(to State) {
	if !CanTransition(m.current, to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", m.current, to))
	}
	from := m.current
	m.current = to
	m.history = append(m.history, to)
	diagf("state %s -> %s", from, to)
	if m.observer != nil {
		m.observer(from, to)
	}
}
