package orchestrator

import (
	"time"

	"github.com/Iron-Ham/symphony/internal/classify"
	"github.com/Iron-Ham/symphony/internal/plan"
	"github.com/Iron-Ham/symphony/internal/state"
)

// InitResult reports a newly created document.
type InitResult struct {
	Success    bool   `json:"success"`
	StatePath  string `json:"statePath"`
	PhaseCount int    `json:"phaseCount"`
	RunID      string `json:"runId"`
}

// ReadyPhase is a runnable phase with the artifacts of its complete
// dependencies.
type ReadyPhase struct {
	Phase     plan.Phase       `json:"phase"`
	Artifacts []state.Artifact `json:"artifacts"`
	// Retry is set for retrying phases whose backoff has elapsed.
	Retry bool `json:"retry,omitempty"`
}

// StartResult reports a phase moved to running.
type StartResult struct {
	Success   bool         `json:"success"`
	PhaseID   string       `json:"phaseId"`
	Status    state.Status `json:"status"`
	StartedAt time.Time    `json:"startedAt"`
	// Attempt is the phase's retry count when it started.
	Attempt int `json:"attempt"`
}

// CompleteResult reports a phase marked complete.
type CompleteResult struct {
	Success             bool            `json:"success"`
	PhaseID             string          `json:"phaseId"`
	Status              state.Status    `json:"status"`
	CompletedAt         time.Time       `json:"completedAt"`
	ArtifactsCount      int             `json:"artifactsCount"`
	CompletedCount      int             `json:"completedCount"`
	UnblockedPhases     []string        `json:"unblockedPhases,omitempty"`
	OrchestrationStatus state.RunStatus `json:"orchestrationStatus"`
}

// FailAction is what mark-failed did with a failure.
type FailAction string

const (
	// ActionScheduledRetry means the phase will be retried after DelayMs.
	ActionScheduledRetry FailAction = "scheduled_retry"
	// ActionAwaitingDecision means a user decision was registered.
	ActionAwaitingDecision FailAction = "awaiting_decision"
	// ActionFailed means the phase failed outright and dependents were blocked.
	ActionFailed FailAction = "failed"
)

// FailResult reports how a failure was routed.
type FailResult struct {
	Success             bool              `json:"success"`
	Action              FailAction        `json:"action"`
	PhaseID             string            `json:"phaseId"`
	RetryCount          int               `json:"retryCount"`
	DelayMs             *int64            `json:"delayMs,omitempty"`
	NextRetryAt         *time.Time        `json:"nextRetryAt,omitempty"`
	ErrorCategory       classify.Category `json:"errorCategory"`
	BlockedPhases       []string          `json:"blockedPhases,omitempty"`
	Message             string            `json:"message,omitempty"`
	OrchestrationStatus state.RunStatus   `json:"orchestrationStatus"`
}

// DecisionResult reports an applied user decision.
type DecisionResult struct {
	Success             bool            `json:"success"`
	PhaseID             string          `json:"phaseId"`
	Decision            state.Decision  `json:"decision"`
	Message             string          `json:"message"`
	BlockedPhases       []string        `json:"blockedPhases,omitempty"`
	AbortedPhases       []string        `json:"abortedPhases,omitempty"`
	Warnings            []string        `json:"warnings,omitempty"`
	OrchestrationStatus state.RunStatus `json:"orchestrationStatus"`
}

// AbortResult reports an explicitly aborted phase.
type AbortResult struct {
	Success             bool            `json:"success"`
	PhaseID             string          `json:"phaseId"`
	BlockedPhases       []string        `json:"blockedPhases,omitempty"`
	OrchestrationStatus state.RunStatus `json:"orchestrationStatus"`
}
