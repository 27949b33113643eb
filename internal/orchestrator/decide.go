package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/scheduler"
	"github.com/Iron-Ham/symphony/internal/state"
)

const skipNote = "Phase skipped by user after retry failure"

// ResolveDecision applies the user's answer to the pending decision of
// phase id.
//
//   - retry_once_more sets the phase ready without refunding its retry
//     budget, so a further failure asks again.
//   - skip_phase completes the phase with a note artifact and warns about
//     the phases that expected its artifacts.
//   - abort_branch aborts the phase and blocks everything downstream.
//   - abort_all aborts every phase that is not complete, including failed
//     and blocked ones.
func (o *Orchestrator) ResolveDecision(ctx context.Context, path, id string, decision state.Decision) (*DecisionResult, error) {
	if !decision.Valid() {
		valid := make([]string, 0, len(state.Decisions()))
		for _, d := range state.Decisions() {
			valid = append(valid, string(d))
		}
		return nil, errors.NewValidationError(fmt.Sprintf(
			"invalid decision %q (valid decisions: %s)", decision, strings.Join(valid, ", "))).
			WithField("decision").WithValue(string(decision))
	}

	var res *DecisionResult
	err := o.mutate(ctx, OpResolve, path, func(doc *state.Document, sched *scheduler.Scheduler, now time.Time) (string, error) {
		ps, err := doc.Phase(id)
		if err != nil {
			return "", err
		}
		if ps.Status != state.StatusAwaitingDecision {
			return "", errors.NewStateError(
				fmt.Sprintf("Phase %q is not awaiting a decision. Current status: %s", id, ps.Status),
				errors.ErrNoPendingDecision).WithPhaseID(id)
		}
		if _, ok := doc.Decision(id); !ok {
			return "", errors.NewStateError(
				fmt.Sprintf("Phase %q not found in pending decisions", id),
				errors.ErrNoPendingDecision).WithPhaseID(id)
		}

		res = &DecisionResult{Success: true, PhaseID: id, Decision: decision}
		log := o.opLogger(OpResolve, doc, id).With("decision", string(decision))

		switch decision {
		case state.DecisionRetryOnceMore:
			if err := ps.Transition(id, state.StatusReady); err != nil {
				return "", err
			}
			ps.Error = ""
			ps.NextRetryAt = nil
			ps.StartedAt = nil
			ps.CompletedAt = nil
			doc.RemoveDecision(id)
			res.Message = "Phase set to ready for one more retry attempt"

		case state.DecisionSkipPhase:
			if err := ps.Transition(id, state.StatusComplete); err != nil {
				return "", err
			}
			ps.CompletedAt = &now
			ps.NextRetryAt = nil
			ps.Artifacts = append(ps.Artifacts, state.Artifact{
				Type:    state.ArtifactNote,
				Content: skipNote,
				Metadata: map[string]any{
					"skipped": true,
					"error":   ps.Error,
				},
			})
			ps.Error = ""
			doc.RemoveDecision(id)
			if expecting := sched.ExpectingArtifacts(id); len(expecting) > 0 {
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"Phase '%s' was skipped. The following phases may fail due to missing artifacts: %s",
					id, strings.Join(expecting, ", ")))
			}
			res.Message = "Phase skipped, dependents unblocked"

		case state.DecisionAbortBranch:
			if err := ps.Transition(id, state.StatusAborted); err != nil {
				return "", err
			}
			ps.CompletedAt = &now
			doc.RemoveDecision(id)
			res.AbortedPhases = []string{id}
			res.BlockedPhases = sched.Block(id)
			res.Message = fmt.Sprintf("Phase aborted, %d dependent phase(s) blocked", len(res.BlockedPhases))

		case state.DecisionAbortAll:
			for _, pid := range doc.PhaseIDs() {
				p := doc.Phases[pid]
				if p.Status == state.StatusComplete || p.Status == state.StatusAborted {
					continue
				}
				if err := p.Transition(pid, state.StatusAborted); err != nil {
					return "", err
				}
				p.CompletedAt = &now
				p.NextRetryAt = nil
				res.AbortedPhases = append(res.AbortedPhases, pid)
			}
			doc.ClearDecisions()
			res.Message = fmt.Sprintf("All phases aborted (%d total)", len(res.AbortedPhases))
		}

		if decision == state.DecisionAbortAll {
			doc.Status = state.RunAborted
			if doc.CompletedAt == nil {
				doc.CompletedAt = &now
			}
		} else {
			doc.DeriveStatus(now)
		}
		res.OrchestrationStatus = doc.Status
		log.Info("decision applied", "message", res.Message,
			"blocked", res.BlockedPhases, "aborted", res.AbortedPhases)
		for _, w := range res.Warnings {
			log.Warn(w)
		}
		return string(decision), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Abort stops a non-terminal phase outside the decision flow and blocks
// its pending and ready descendants.
func (o *Orchestrator) Abort(ctx context.Context, path, id string) (*AbortResult, error) {
	var res *AbortResult
	err := o.mutate(ctx, OpAbort, path, func(doc *state.Document, sched *scheduler.Scheduler, now time.Time) (string, error) {
		ps, err := doc.Phase(id)
		if err != nil {
			return "", err
		}
		// failed and blocked phases may only be aborted through abort_all.
		if ps.Status.IsTerminal() {
			return "", errors.NewTransitionError(id, string(ps.Status), string(state.StatusAborted))
		}
		if err := ps.Transition(id, state.StatusAborted); err != nil {
			return "", err
		}
		ps.CompletedAt = &now
		ps.NextRetryAt = nil
		doc.RemoveDecision(id)
		blocked := sched.Block(id)

		res = &AbortResult{
			Success:             true,
			PhaseID:             id,
			BlockedPhases:       blocked,
			OrchestrationStatus: doc.DeriveStatus(now),
		}
		o.opLogger(OpAbort, doc, id).Warn("phase aborted", "blocked", blocked)
		return "aborted", nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
