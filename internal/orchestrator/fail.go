package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/symphony/internal/classify"
	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/scheduler"
	"github.com/Iron-Ham/symphony/internal/state"
)

// FailRequest reports a failed phase execution.
type FailRequest struct {
	StatePath string
	PhaseID   string
	// Error is the failure message; it is classified to pick the route.
	Error string
	// Force retries regardless of category and budget.
	Force bool
	// NoRetry skips the retry and asks the user straight away.
	NoRetry bool
	// Bypass fails the phase outright and blocks its dependents without
	// asking the user.
	Bypass bool
}

func (r FailRequest) validate() error {
	var errs errors.ValidationErrors
	if strings.TrimSpace(r.Error) == "" {
		errs = append(errs, errors.NewValidationError("error message is required").WithField("error"))
	}
	if r.Force && r.NoRetry {
		errs = append(errs, errors.NewValidationError("force and no-retry are mutually exclusive").WithField("force"))
	}
	if r.Force && r.Bypass {
		errs = append(errs, errors.NewValidationError("force and fail-fast are mutually exclusive").WithField("force"))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Messages recorded on decisions and results.
const (
	msgNotRetryable   = "Error category '%s' is not retryable"
	msgRetriesSpent   = "Max retries exceeded, awaiting user decision"
	msgRetrySkipped   = "Retry skipped by request, awaiting user decision"
	msgFailedOutright = "Phase failed, %d dependent phase(s) blocked"
)

// MarkFailed classifies a failure and routes the phase to a scheduled
// retry, a pending user decision, or (with Bypass) an outright failure.
//
// The backoff delay uses the retry count before the failure is counted,
// so the first retry waits InitialDelayMs. Every routed failure appends a
// RetryAttempt to the phase history.
func (o *Orchestrator) MarkFailed(ctx context.Context, req FailRequest) (*FailResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	class := classify.Classify(req.Error)

	var res *FailResult
	err := o.mutate(ctx, OpFail, req.StatePath, func(doc *state.Document, sched *scheduler.Scheduler, now time.Time) (string, error) {
		id := req.PhaseID
		ps, err := doc.Phase(id)
		if err != nil {
			return "", err
		}
		if ps.Status != state.StatusRunning && !ps.Status.CanTransitionTo(state.StatusRunning) {
			return "", errors.NewTransitionError(id, string(ps.Status), string(state.StatusRetrying))
		}

		policy := doc.Policy()
		attempt := state.RetryAttempt{
			AttemptNumber: ps.RetryCount,
			StartedAt:     now,
			FailedAt:      now,
			Error:         req.Error,
			ErrorCategory: class.Category,
		}
		if ps.StartedAt != nil {
			attempt.StartedAt = *ps.StartedAt
			attempt.DurationMs = now.Sub(*ps.StartedAt).Milliseconds()
		}

		res = &FailResult{
			Success:       true,
			PhaseID:       id,
			ErrorCategory: class.Category,
		}
		log := o.opLogger(OpFail, doc, id).With("category", string(class.Category))

		switch {
		case req.Bypass:
			if err := ps.TransitionVia(id, state.StatusFailed); err != nil {
				return "", err
			}
			ps.Error = req.Error
			ps.LastErrorCategory = class.Category
			ps.CompletedAt = &now
			ps.NextRetryAt = nil
			ps.RetryHistory = append(ps.RetryHistory, attempt)
			doc.RemoveDecision(id)
			blocked := sched.Block(id)

			res.Action = ActionFailed
			res.BlockedPhases = blocked
			res.Message = fmt.Sprintf(msgFailedOutright, len(blocked))
			log.Warn("phase failed without retry", "blocked", blocked)

		case !req.Force && (req.NoRetry || !policy.Retryable(class.Category) || ps.RetryCount >= policy.MaxRetries):
			msg := msgRetriesSpent
			switch {
			case req.NoRetry:
				msg = msgRetrySkipped
			case !policy.Retryable(class.Category):
				msg = fmt.Sprintf(msgNotRetryable, class.Category)
			}
			if err := ps.TransitionVia(id, state.StatusAwaitingDecision); err != nil {
				return "", err
			}
			ps.Error = req.Error
			ps.LastErrorCategory = class.Category
			ps.NextRetryAt = nil
			ps.RetryHistory = append(ps.RetryHistory, attempt)
			doc.SetDecision(state.PendingDecision{
				PhaseID:       id,
				Error:         req.Error,
				ErrorCategory: class.Category,
				RetryCount:    ps.RetryCount,
				Options:       state.Decisions(),
				AskedAt:       now,
			})

			res.Action = ActionAwaitingDecision
			res.Message = msg
			log.Warn("phase awaiting decision", "reason", msg, "retries", ps.RetryCount)

		default:
			delay := o.backoff.Delay(ps.RetryCount, policy.BackoffStrategy, policy.InitialDelayMs, policy.MaxDelayMs)
			if err := ps.TransitionVia(id, state.StatusRetrying); err != nil {
				return "", err
			}
			next := now.Add(time.Duration(delay) * time.Millisecond)
			ps.RetryCount++
			ps.Error = req.Error
			ps.LastErrorCategory = class.Category
			ps.NextRetryAt = &next
			ps.StartedAt = nil
			ps.CompletedAt = nil
			ps.RetryHistory = append(ps.RetryHistory, attempt)
			doc.RemoveDecision(id)

			res.Action = ActionScheduledRetry
			res.DelayMs = &delay
			res.NextRetryAt = &next
			log.Info("phase retry scheduled", "delay_ms", delay, "retry", ps.RetryCount, "forced", req.Force)
		}

		res.RetryCount = ps.RetryCount
		res.OrchestrationStatus = doc.DeriveStatus(now)
		return string(res.Action), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
