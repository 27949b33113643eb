package orchestrator

import (
	"context"
	"time"

	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/scheduler"
	"github.com/Iron-Ham/symphony/internal/state"
)

// MarkComplete records a successful phase and replaces its artifacts.
// Completing a complete phase again is allowed and refreshes the artifacts.
// A phase awaiting a decision must be resolved with skip_phase instead.
func (o *Orchestrator) MarkComplete(ctx context.Context, path, id string, artifacts []state.Artifact) (*CompleteResult, error) {
	if err := state.ValidateArtifacts(artifacts); err != nil {
		return nil, err
	}
	if artifacts == nil {
		artifacts = []state.Artifact{}
	}

	var res *CompleteResult
	err := o.mutate(ctx, OpComplete, path, func(doc *state.Document, sched *scheduler.Scheduler, now time.Time) (string, error) {
		ps, err := doc.Phase(id)
		if err != nil {
			return "", err
		}
		if ps.Status == state.StatusAwaitingDecision {
			return "", errors.Wrapf(errors.ErrInvalidTransition,
				"phase %q is awaiting a decision; resolve it with %s", id, state.DecisionSkipPhase)
		}
		outcome := "completed"
		if ps.Status == state.StatusComplete {
			outcome = "recompleted"
		}
		if err := ps.TransitionVia(id, state.StatusComplete); err != nil {
			return "", err
		}
		if ps.StartedAt == nil {
			ps.StartedAt = &now
		}
		ps.CompletedAt = &now
		ps.Artifacts = artifacts
		ps.Error = ""
		ps.NextRetryAt = nil

		if doc.AllComplete() {
			doc.DeriveStatus(now)
		}
		doc.Recount()

		res = &CompleteResult{
			Success:             true,
			PhaseID:             id,
			Status:              ps.Status,
			CompletedAt:         now,
			ArtifactsCount:      len(artifacts),
			CompletedCount:      doc.CompletedCount,
			UnblockedPhases:     sched.Unblocked(id),
			OrchestrationStatus: doc.Status,
		}
		o.opLogger(OpComplete, doc, id).Info("phase completed",
			"artifacts", len(artifacts), "completed", doc.CompletedCount, "unblocked", res.UnblockedPhases)
		return outcome, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
