package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/filelock"
	"github.com/Iron-Ham/symphony/internal/plan"
	"github.com/Iron-Ham/symphony/internal/state"
)

// InitRequest describes a new orchestration.
type InitRequest struct {
	// PlanPath is the Markdown plan holding the phases block.
	PlanPath string
	// OutputPath is the document path; empty means DefaultFileName in the
	// working directory.
	OutputPath string
	// Policy overrides the default retry policy.
	Policy *state.RetryPolicy
	// Force overwrites an existing document.
	Force bool
}

// Init validates the plan and writes a new document with every phase
// pending.
func (o *Orchestrator) Init(ctx context.Context, req InitRequest) (*InitResult, error) {
	if req.PlanPath == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "plan path is required")
	}
	planPath, err := filepath.Abs(req.PlanPath)
	if err != nil {
		return nil, fmt.Errorf("resolve plan path: %w", err)
	}
	out := req.OutputPath
	if out == "" {
		out = state.DefaultFileName
	}
	out, err = filepath.Abs(out)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	policy := state.DefaultRetryPolicy()
	if req.Policy != nil {
		if err := req.Policy.Validate(); err != nil {
			return nil, err
		}
		policy = *req.Policy
	}

	phases, err := plan.ParseFile(planPath)
	if err != nil {
		return nil, err
	}

	now := o.timestamp()
	doc := state.New(planPath, o.newID(), phases, policy, now)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	err = filelock.WithLock(ctx, o.locker, out, func() error {
		return state.Create(out, doc, req.Force, now)
	})
	if err != nil {
		o.metrics.ObserveTransition(OpInit, "error")
		return nil, err
	}

	o.metrics.ObserveTransition(OpInit, "created")
	o.metrics.SetPhaseCounts(countsByName(doc))
	o.opLogger(OpInit, doc, "").Info("orchestration initialized",
		"plan", planPath, "state", out, "phases", len(phases))

	return &InitResult{
		Success:    true,
		StatePath:  out,
		PhaseCount: len(phases),
		RunID:      doc.RunID,
	}, nil
}
