// Package state provides the lifecycle states of a single action invocation
// and the transition rules the invoker enforces.
package state

import (
	"encoding/json"
	"fmt"
)

// Status represents the lifecycle status of an invocation.
type Status int32

const (
	// StatusUnknown indicates an invocation that has not been started.
	StatusUnknown Status = iota

	// StatusSelected indicates an action descriptor has been chosen.
	StatusSelected

	// StatusBinding indicates arguments are being bound.
	StatusBinding

	// StatusInvoking indicates action filters and the handler are running.
	StatusInvoking

	// StatusResultExecuting indicates the result is being written.
	StatusResultExecuting

	// StatusCompleted indicates the response has been fully produced.
	StatusCompleted

	// StatusFaulted indicates the invocation ended with an unrecovered error.
	StatusFaulted
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusSelected:
		return "selected"
	case StatusBinding:
		return "binding"
	case StatusInvoking:
		return "invoking"
	case StatusResultExecuting:
		return "result-executing"
	case StatusCompleted:
		return "completed"
	case StatusFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("status(%d)", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseStatus(str)
	return nil
}

// ParseStatus converts a string to Status.
func ParseStatus(s string) Status {
	switch s {
	case "selected":
		return StatusSelected
	case "binding":
		return StatusBinding
	case "invoking":
		return StatusInvoking
	case "result-executing", "result_executing":
		return StatusResultExecuting
	case "completed":
		return StatusCompleted
	case "faulted":
		return StatusFaulted
	default:
		return StatusUnknown
	}
}

// IsTerminal returns true if no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFaulted
}

// ValidTransitions defines allowed state transitions. Faulted is reachable
// from every non-terminal state. Selected may jump to ResultExecuting when an
// authorization or resource filter short-circuits, and Binding may jump there
// when a required parameter is missing.
var ValidTransitions = map[Status][]Status{
	StatusUnknown:         {StatusSelected, StatusFaulted},
	StatusSelected:        {StatusBinding, StatusResultExecuting, StatusCompleted, StatusFaulted},
	StatusBinding:         {StatusInvoking, StatusResultExecuting, StatusFaulted},
	StatusInvoking:        {StatusResultExecuting, StatusFaulted},
	StatusResultExecuting: {StatusCompleted, StatusFaulted},
}

// CanTransition returns true if the transition from -> to is valid.
func CanTransition(from, to Status) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError represents an invalid state transition.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements error.
func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// Machine tracks the state of one invocation. It is owned by a single
// invoker and is not safe for concurrent use.
type Machine struct {
	current Status
	history []Status
	onEnter func(from, to Status)
}

// NewMachine creates a machine in StatusUnknown. onEnter, if non-nil, is
// called after every successful transition.
func NewMachine(onEnter func(from, to Status)) *Machine {
	return &Machine{current: StatusUnknown, onEnter: onEnter}
}

// Current returns the current status.
func (m *Machine) Current() Status {
	return m.current
}

// History returns every status entered, in order.
func (m *Machine) History() []Status {
	out := make([]Status, len(m.history))
	copy(out, m.history)
	return out
}

// Visited reports whether the machine ever entered s.
func (m *Machine) Visited(s Status) bool {
	for _, h := range m.history {
		if h == s {
			return true
		}
	}
	return false
}

// Transition moves to the given status. Transitioning to the current status
// is a no-op.
func (m *Machine) Transition(to Status) error {
	if m.current == to {
		return nil
	}
	if !CanTransition(m.current, to) {
		return TransitionError{From: m.current, To: to}
	}
	from := m.current
	m.current = to
	m.history = append(m.history, to)
	if m.onEnter != nil {
		m.onEnter(from, to)
	}
	return nil
}

// Fault moves to StatusFaulted unless the machine is already terminal.
func (m *Machine) Fault() {
	if m.current.IsTerminal() {
		return
	}
	_ = m.Transition(StatusFaulted)
}
