package compiler

import "fmt"

// State is a step of a single compilation run.
type State string

// Run states in the order a successful run passes through them. Failed is
// terminal and reachable from any non-terminal state.
const (
	StateInit              State = "init"
	StateRegistryLoaded    State = "registry_loaded"
	StateRulesParsed       State = "rules_parsed"
	StateGrouped           State = "grouped"
	StateConflictsResolved State = "conflicts_resolved"
	StateManifestBuilt     State = "manifest_built"
	StateFailed            State = "failed"
)

var nextState = map[State]State{
	StateInit:              StateRegistryLoaded,
	StateRegistryLoaded:    StateRulesParsed,
	StateRulesParsed:       StateGrouped,
	StateGrouped:           StateConflictsResolved,
	StateConflictsResolved: StateManifestBuilt,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateManifestBuilt || s == StateFailed
}

// machine enforces the single-pass state sequence.
type machine struct {
	state   State
	history []State
}

func newMachine() *machine {
	return &machine{state: StateInit, history: []State{StateInit}}
}

// advance moves to next. Only the direct successor or Failed are allowed.
func (m *machine) advance(next State) error {
	if m.state.Terminal() {
		return fmt.Errorf("compiler: run already %s", m.state)
	}
	if next != StateFailed && nextState[m.state] != next {
		return fmt.Errorf("compiler: invalid transition %s -> %s", m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}

func (m *machine) fail() {
	if !m.state.Terminal() {
		m.state = StateFailed
		m.history = append(m.history, StateFailed)
	}
}
