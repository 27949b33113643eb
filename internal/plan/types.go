// Package plan defines phase definitions, extracts them from Markdown plan
// files, validates them, and discovers plan files on disk.
package plan

import (
	"slices"

	"github.com/Iron-Ham/symphony/internal/dag"
)

// Complexity is the estimated effort of a phase.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// RequiredContext lists what a phase's worker needs to know.
type RequiredContext struct {
	Files    []string `json:"files" yaml:"files"`
	Concepts []string `json:"concepts" yaml:"concepts"`
	// ArtifactsFrom names phases whose artifacts this phase consumes. Each
	// entry is an implicit dependency.
	ArtifactsFrom []string `json:"artifacts_from" yaml:"artifacts_from"`
}

// Phase is one node of an execution plan. Phases are immutable once a
// document has been initialized from them.
type Phase struct {
	ID              string          `json:"id" yaml:"id"`
	Title           string          `json:"title" yaml:"title"`
	Objective       string          `json:"objective" yaml:"objective"`
	Tasks           []string        `json:"tasks" yaml:"tasks"`
	Dependencies    []string        `json:"dependencies" yaml:"dependencies"`
	Complexity      Complexity      `json:"complexity" yaml:"complexity"`
	RequiredContext RequiredContext `json:"required_context" yaml:"required_context"`
	SuccessCriteria string          `json:"success_criteria" yaml:"success_criteria"`
	Constraints     []string        `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// AllDependencies returns the explicit dependencies followed by any
// artifacts_from ids not already listed.
func (p Phase) AllDependencies() []string {
	out := make([]string, 0, len(p.Dependencies)+len(p.RequiredContext.ArtifactsFrom))
	for _, id := range p.Dependencies {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	for _, id := range p.RequiredContext.ArtifactsFrom {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Graph builds the combined dependency graph (dependencies ∪ artifacts_from)
// of phases. References to ids that are not in phases are dropped.
func Graph(phases []Phase) *dag.Graph {
	g := dag.New()
	for _, p := range phases {
		g.AddNode(p.ID)
	}
	for _, p := range phases {
		for _, dep := range p.AllDependencies() {
			if g.Has(dep) {
				g.AddEdge(p.ID, dep)
			}
		}
	}
	return g
}

// Index maps phase id to phase.
func Index(phases []Phase) map[string]Phase {
	m := make(map[string]Phase, len(phases))
	for _, p := range phases {
		m[p.ID] = p
	}
	return m
}
