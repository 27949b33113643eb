// Package scheduler is the status-aware view of a document's dependency
// graph. It answers which phases may run, which artifacts a phase receives,
// and which phases a failure blocks. Readiness is always computed from the
// current statuses; nothing here caches it.
package scheduler

import (
	"maps"
	"time"

	"github.com/Iron-Ham/symphony/internal/dag"
	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/plan"
	"github.com/Iron-Ham/symphony/internal/state"
)

// SourcePhaseKey is the artifact metadata key naming the producing phase.
const SourcePhaseKey = "sourcePhase"

// Scheduler wraps a document with its combined dependency graph
// (dependencies ∪ artifacts_from). Mutating methods write through to the
// document's phase states.
type Scheduler struct {
	doc   *state.Document
	graph *dag.Graph
	defs  map[string]plan.Phase
}

// New builds the graph for doc.
func New(doc *state.Document) *Scheduler {
	return &Scheduler{
		doc:   doc,
		graph: plan.Graph(doc.Plan.Phases),
		defs:  plan.Index(doc.Plan.Phases),
	}
}

// Graph returns the combined dependency graph.
func (s *Scheduler) Graph() *dag.Graph {
	return s.graph
}

func (s *Scheduler) status(id string) state.Status {
	if ps, ok := s.doc.Phases[id]; ok {
		return ps.Status
	}
	return ""
}

// DependenciesComplete reports whether every combined dependency of id is
// complete.
func (s *Scheduler) DependenciesComplete(id string) bool {
	for _, dep := range s.graph.Dependencies(id) {
		if s.status(dep) != state.StatusComplete {
			return false
		}
	}
	return true
}

// IncompleteDependencies lists the combined dependencies of id that are not
// complete, in declaration order.
func (s *Scheduler) IncompleteDependencies(id string) []string {
	var out []string
	for _, dep := range s.graph.Dependencies(id) {
		if s.status(dep) != state.StatusComplete {
			out = append(out, dep)
		}
	}
	return out
}

// IsReady reports whether id is pending or ready and all of its combined
// dependencies are complete.
func (s *Scheduler) IsReady(id string) bool {
	st := s.status(id)
	if st != state.StatusPending && st != state.StatusReady {
		return false
	}
	return s.DependenciesComplete(id)
}

// Ready returns the ready phases in plan order.
func (s *Scheduler) Ready() []string {
	var ready []string
	for _, id := range s.doc.PhaseIDs() {
		if s.IsReady(id) {
			ready = append(ready, id)
		}
	}
	return ready
}

// DueRetries returns retrying phases whose NextRetryAt is not after now,
// in plan order. A retrying phase without NextRetryAt is always due.
func (s *Scheduler) DueRetries(now time.Time) []string {
	var due []string
	for _, id := range s.doc.PhaseIDs() {
		ps := s.doc.Phases[id]
		if ps.Status != state.StatusRetrying {
			continue
		}
		if ps.NextRetryAt == nil || !ps.NextRetryAt.After(now) {
			due = append(due, id)
		}
	}
	return due
}

// Unblocked returns the phases that became ready because id completed.
func (s *Scheduler) Unblocked(id string) []string {
	var out []string
	for _, dependent := range s.graph.Dependents(id) {
		if s.IsReady(dependent) {
			out = append(out, dependent)
		}
	}
	return out
}

// ArtifactsFor collects the artifacts of id's complete dependencies:
// artifacts_from sources first, then the remaining explicit dependencies.
// Artifacts sharing a path are kept once (first wins); artifacts without a
// path are always kept. Each copy is annotated with its source phase.
func (s *Scheduler) ArtifactsFor(id string) ([]state.Artifact, error) {
	def, ok := s.defs[id]
	if !ok {
		return nil, errors.NewStateError("phase "+id+" not found", errors.ErrPhaseNotFound).WithPhaseID(id)
	}

	sources := make([]string, 0, len(def.RequiredContext.ArtifactsFrom)+len(def.Dependencies))
	seenSource := make(map[string]bool)
	for _, src := range append(append([]string{}, def.RequiredContext.ArtifactsFrom...), def.Dependencies...) {
		if !seenSource[src] {
			seenSource[src] = true
			sources = append(sources, src)
		}
	}

	out := []state.Artifact{}
	seenPath := make(map[string]bool)
	for _, src := range sources {
		ps, ok := s.doc.Phases[src]
		if !ok || ps.Status != state.StatusComplete {
			continue
		}
		for _, a := range ps.Artifacts {
			if a.Path != "" {
				if seenPath[a.Path] {
					continue
				}
				seenPath[a.Path] = true
			}
			md := make(map[string]any, len(a.Metadata)+1)
			maps.Copy(md, a.Metadata)
			md[SourcePhaseKey] = src
			a.Metadata = md
			out = append(out, a)
		}
	}
	return out, nil
}

// Block moves every pending or ready phase that transitively depends on
// any of ids to blocked and returns them in breadth-first order. The walk
// is iterative over the reverse adjacency of the combined graph.
func (s *Scheduler) Block(ids ...string) []string {
	var blocked []string
	for _, id := range s.graph.Descendants(ids...) {
		ps, ok := s.doc.Phases[id]
		if !ok {
			continue
		}
		// Only pending and ready phases have an edge to blocked.
		if ps.Transition(id, state.StatusBlocked) == nil {
			blocked = append(blocked, id)
		}
	}
	return blocked
}

// ExpectingArtifacts returns the phases that directly consume id, through
// artifacts_from or an explicit dependency, in plan order.
func (s *Scheduler) ExpectingArtifacts(id string) []string {
	direct := make(map[string]bool)
	for _, d := range s.graph.Dependents(id) {
		direct[d] = true
	}
	var out []string
	for _, pid := range s.doc.PhaseIDs() {
		if direct[pid] {
			out = append(out, pid)
		}
	}
	return out
}

// Levels groups phases into execution waves; see dag.Graph.Levels.
func (s *Scheduler) Levels() ([][]string, []string) {
	return s.graph.Levels()
}
