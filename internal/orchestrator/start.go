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

// Start reports that an executor picked up phase id. Pending and ready
// phases need every dependency complete; retrying phases may start once
// their backoff has been honoured by the caller.
func (o *Orchestrator) Start(ctx context.Context, path, id string) (*StartResult, error) {
	var res *StartResult
	err := o.mutate(ctx, OpStart, path, func(doc *state.Document, sched *scheduler.Scheduler, now time.Time) (string, error) {
		ps, err := doc.Phase(id)
		if err != nil {
			return "", err
		}
		if ps.Status == state.StatusPending || ps.Status == state.StatusReady {
			if waiting := sched.IncompleteDependencies(id); len(waiting) > 0 {
				return "", errors.Wrapf(errors.ErrInvalidInput,
					"phase %q is waiting on incomplete dependencies: %s", id, strings.Join(waiting, ", "))
			}
		}
		from := ps.Status
		if err := ps.Transition(id, state.StatusRunning); err != nil {
			return "", err
		}
		ps.StartedAt = &now
		ps.CompletedAt = nil
		ps.NextRetryAt = nil

		res = &StartResult{
			Success:   true,
			PhaseID:   id,
			Status:    ps.Status,
			StartedAt: now,
			Attempt:   ps.RetryCount,
		}
		o.opLogger(OpStart, doc, id).Info("phase started",
			"from", string(from), "attempt", ps.RetryCount)
		return fmt.Sprintf("from_%s", from), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
