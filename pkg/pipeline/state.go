package pipeline

import (
	"errors"
	"fmt"
)

// State is a stage of a run
type State string

const (
	StateInit        State = "INIT"
	StateEnumerating State = "ENUMERATING"
	StateResolving   State = "RESOLVING"
	StateFiltering   State = "FILTERING"
	StateRendering   State = "RENDERING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// ErrInvalidTransition is returned for a transition the run does not allow
var ErrInvalidTransition = errors.New("invalid state transition")

// FAILED is only reachable before any item has been resolved
var transitions = map[State][]State{
	StateInit:        {StateEnumerating, StateFailed},
	StateEnumerating: {StateResolving, StateFailed},
	StateResolving:   {StateFiltering},
	StateFiltering:   {StateRendering},
	StateRendering:   {StateDone},
}

// Machine tracks the state of one run. States are never re-entered.
type Machine struct {
	state   State
	history []State
}

// NewMachine starts in INIT
func NewMachine() *Machine {
	return &Machine{state: StateInit, history: []State{StateInit}}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// History returns every state entered, in order
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// To moves to next if the current state allows it
func (m *Machine) To(next State) error {
	for _, s := range m.history {
		if s == next {
			return fmt.Errorf("%w: %s already visited", ErrInvalidTransition, next)
		}
	}
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
}

// Terminal reports whether the run has finished
func (m *Machine) Terminal() bool {
	return m.state == StateDone || m.state == StateFailed
}
