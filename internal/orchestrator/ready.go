package orchestrator

import (
	"context"

	"github.com/Iron-Ham/symphony/internal/scheduler"
	"github.com/Iron-Ham/symphony/internal/state"
)

// ReadyOptions tunes GetReady.
type ReadyOptions struct {
	// IncludeDueRetries also lists retrying phases whose backoff has
	// elapsed.
	IncludeDueRetries bool
}

// GetReady lists the phases that may start now, in plan order, each with
// the artifacts of its complete dependencies. It only reads the document;
// atomic writes guarantee a consistent snapshot without the lock.
func (o *Orchestrator) GetReady(ctx context.Context, path string, opts ReadyOptions) ([]ReadyPhase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := state.Load(path)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(doc)

	out := []ReadyPhase{}
	add := func(id string, retry bool) error {
		def, _ := doc.Definition(id)
		artifacts, err := sched.ArtifactsFor(id)
		if err != nil {
			return err
		}
		out = append(out, ReadyPhase{Phase: def, Artifacts: artifacts, Retry: retry})
		return nil
	}

	for _, id := range sched.Ready() {
		if err := add(id, false); err != nil {
			return nil, err
		}
	}
	if opts.IncludeDueRetries {
		for _, id := range sched.DueRetries(o.timestamp()) {
			if err := add(id, true); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
