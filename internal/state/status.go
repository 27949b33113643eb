package state

import (
	"slices"

	"github.com/Iron-Ham/symphony/internal/errors"
)

// Status is the lifecycle state of one phase.
type Status string

const (
	// StatusPending is the initial status. Readiness is computed on demand.
	StatusPending Status = "pending"
	// StatusReady marks a phase explicitly returned to the runnable set.
	StatusReady Status = "ready"
	// StatusRunning indicates the runner has started the phase.
	StatusRunning Status = "running"
	// StatusComplete indicates success (or a user skip).
	StatusComplete Status = "complete"
	// StatusFailed indicates a failure that bypassed the decision flow.
	StatusFailed Status = "failed"
	// StatusAborted indicates an explicit abort.
	StatusAborted Status = "aborted"
	// StatusBlocked indicates an ancestor failed or was aborted.
	StatusBlocked Status = "blocked"
	// StatusRetrying indicates a retry is scheduled at NextRetryAt.
	StatusRetrying Status = "retrying"
	// StatusAwaitingDecision indicates a user decision is required.
	StatusAwaitingDecision Status = "awaiting_decision"
)

// Statuses returns every phase status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending, StatusReady, StatusRunning, StatusRetrying,
		StatusAwaitingDecision, StatusComplete, StatusFailed, StatusAborted, StatusBlocked,
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses(), s)
}

// IsTerminal returns true for statuses the runner can no longer move. Only
// the idempotent complete -> complete re-mark and an abort_all decision
// (failed or blocked -> aborted) leave them.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusAborted, StatusBlocked:
		return true
	}
	return false
}

// transitions is the closed set of legal status edges.
var transitions = map[Status][]Status{
	StatusPending:          {StatusReady, StatusRunning, StatusBlocked, StatusAborted},
	StatusReady:            {StatusPending, StatusRunning, StatusBlocked, StatusAborted},
	StatusRunning:          {StatusComplete, StatusRetrying, StatusAwaitingDecision, StatusFailed, StatusAborted},
	StatusRetrying:         {StatusRunning, StatusAwaitingDecision, StatusFailed, StatusAborted},
	StatusAwaitingDecision: {StatusReady, StatusComplete, StatusAborted},
	StatusComplete:         {StatusComplete},
	StatusFailed:           {StatusAborted},
	StatusBlocked:          {StatusAborted},
}

// CanTransitionTo reports whether the transition table has an edge s -> to.
func (s Status) CanTransitionTo(to Status) bool {
	return slices.Contains(transitions[s], to)
}

// startable lists the statuses from which an outcome report implies the
// runner's start signal.
func (s Status) startable() bool {
	return s == StatusPending || s == StatusReady || s == StatusRetrying
}

// RunStatus is the overall status of an orchestration document.
type RunStatus string

const (
	RunRunning              RunStatus = "running"
	RunCompleted            RunStatus = "completed"
	RunFailed               RunStatus = "failed"
	RunAborted              RunStatus = "aborted"
	RunAwaitingUserDecision RunStatus = "awaiting_user_decision"
)

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed, RunAborted, RunAwaitingUserDecision:
		return true
	}
	return false
}

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunAborted
}

// Transition moves the phase to status to, failing with a
// *errors.TransitionError when the table has no such edge.
func (ps *PhaseState) Transition(phaseID string, to Status) error {
	if !ps.Status.CanTransitionTo(to) {
		return errors.NewTransitionError(phaseID, string(ps.Status), string(to))
	}
	ps.Status = to
	return nil
}

// TransitionVia applies the implied start edge when the phase has not been
// reported as running yet, then moves it to to. Each edge is checked.
func (ps *PhaseState) TransitionVia(phaseID string, to Status) error {
	if ps.Status.startable() && ps.Status != to {
		if err := ps.Transition(phaseID, StatusRunning); err != nil {
			return err
		}
	}
	return ps.Transition(phaseID, to)
}
