package service

import (
	"fmt"
)

// State is a step in the processing of one inbound delivery.
type State string

const (
	StateReceived        State = "received"
	StateSecretChecked   State = "secret_checked"
	StateRateChecked     State = "rate_checked"
	StateTenantResolved  State = "tenant_resolved"
	StateLogged          State = "logged"
	StateReplied         State = "replied"
	StateNotifyAttempted State = "notify_attempted"

	StateAuthRejected State = "auth_rejected"
	StateRateRejected State = "rate_rejected"
	StateUnlinked     State = "unlinked"
	StateAnswered     State = "answered"
	StateIgnored      State = "ignored"
)

// validTransitions defines the allowed state transitions.
// Key = from state, Value = set of allowed target states.
var validTransitions = map[State]map[State]bool{
	StateReceived: {
		StateSecretChecked: true,
		StateAuthRejected:  true,
	},
	StateSecretChecked: {
		StateRateChecked:  true,
		StateRateRejected: true,
		StateIgnored:      true,
	},
	StateRateChecked: {
		StateTenantResolved: true,
		StateUnlinked:       true,
		StateAnswered:       true,
	},
	StateTenantResolved: {
		StateLogged:   true,
		StateAnswered: true,
	},
	// Reply and notification are independent of each other.
	StateLogged: {
		StateReplied:         true,
		StateNotifyAttempted: true,
	},
	StateReplied: {
		StateNotifyAttempted: true,
	},
	StateNotifyAttempted: {
		StateReplied: true,
	},
	StateAuthRejected: {},
	StateRateRejected: {},
	StateUnlinked:     {},
	StateAnswered:     {},
	StateIgnored:      {},
}

// Outcome is the terminal classification of a delivery.
type Outcome string

const (
	OutcomeProcessed    Outcome = "processed"
	OutcomeAuthRejected Outcome = "auth_rejected"
	OutcomeRateRejected Outcome = "rate_rejected"
	OutcomeUnlinked     Outcome = "unlinked"
	OutcomeAnswered     Outcome = "answered"
	OutcomeIgnored      Outcome = "ignored"
)

// Result describes how a delivery was handled.
type Result struct {
	Outcome       Outcome
	Path          []State
	InteractionID string
	Replied       bool
}

// trace records the path of one delivery and enforces validTransitions.
type trace struct {
	path []State
}

func newTrace() *trace {
	return &trace{path: []State{StateReceived}}
}

func (t *trace) current() State {
	return t.path[len(t.path)-1]
}

// to moves to the next state. A state is never entered twice.
func (t *trace) to(next State) error {
	from := t.current()
	if !validTransitions[from][next] {
		return fmt.Errorf("invalid state transition: %s → %s", from, next)
	}
	for _, s := range t.path {
		if s == next {
			return fmt.Errorf("state %s already visited", next)
		}
	}
	t.path = append(t.path, next)
	return nil
}

// outcome derives the terminal outcome from the path.
func (t *trace) outcome() Outcome {
	for i := len(t.path) - 1; i >= 0; i-- {
		switch t.path[i] {
		case StateLogged:
			return OutcomeProcessed
		case StateAuthRejected:
			return OutcomeAuthRejected
		case StateRateRejected:
			return OutcomeRateRejected
		case StateUnlinked:
			return OutcomeUnlinked
		case StateAnswered:
			return OutcomeAnswered
		case StateIgnored:
			return OutcomeIgnored
		}
	}
	return ""
}

func (t *trace) result() Result {
	return Result{
		Outcome: t.outcome(),
		Path:    append([]State(nil), t.path...),
	}
}
