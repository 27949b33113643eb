package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Iron-Ham/symphony/internal/errors"
)

// MaxPhaseIDLength bounds phase ids.
const MaxPhaseIDLength = 64

// phaseIDPattern admits kebab-case ASCII only. Phase ids end up in file
// paths, process names and shell arguments.
var phaseIDPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// ValidComplexities returns the accepted complexity values.
func ValidComplexities() []string {
	return []string{string(ComplexityLow), string(ComplexityMedium), string(ComplexityHigh)}
}

// ValidatePhaseID checks a single phase id. It returns nil when id is valid.
// The returned error has no field set.
func ValidatePhaseID(id any) *errors.ValidationError {
	s, ok := id.(string)
	switch {
	case !ok:
		return errors.NewValidationError("Phase ID must be a string").WithValue(id)
	case s == "":
		return errors.NewValidationError("Phase ID cannot be empty").WithValue(id)
	case len(s) > MaxPhaseIDLength:
		return errors.NewValidationError(
			fmt.Sprintf("Phase ID exceeds maximum length of %d characters", MaxPhaseIDLength),
		).WithValue(id)
	case !phaseIDPattern.MatchString(s):
		return errors.NewValidationError(
			"Phase ID must be kebab-case (lowercase letters, numbers, hyphens only). Must start with a letter and cannot end with a hyphen.",
		).WithValue(id)
	}
	return nil
}

// IsValidPhaseID reports whether id is an acceptable phase id.
func IsValidPhaseID(id string) bool {
	return ValidatePhaseID(id) == nil
}

type collector struct {
	errs errors.ValidationErrors
}

func (c *collector) add(field, msg string, value any) {
	c.errs = append(c.errs, errors.NewValidationError(msg).WithField(field).WithValue(value))
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// ValidatePhase checks one decoded phase object. index is used for field
// paths (phases[i]); a negative index uses the prefix "phase".
func ValidatePhase(raw any, index int) errors.ValidationErrors {
	var c collector
	c.phase(raw, index)
	return c.errs
}

func (c *collector) phase(raw any, index int) {
	prefix := "phase"
	if index >= 0 {
		prefix = fmt.Sprintf("phases[%d]", index)
	}

	p, ok := raw.(map[string]any)
	if !ok {
		c.add(prefix, "Phase must be an object", raw)
		return
	}

	if err := ValidatePhaseID(p["id"]); err != nil {
		c.add(prefix+".id", err.Message(), p["id"])
	}

	for _, field := range []string{"title", "objective"} {
		if !nonEmptyString(p[field]) {
			c.add(prefix+"."+field, fmt.Sprintf("Phase %s must be a non-empty string", field), p[field])
		}
	}

	switch tasks := p["tasks"].(type) {
	case []any:
		if len(tasks) == 0 {
			c.add(prefix+".tasks", "Phase must have at least one task", tasks)
		}
		for i, task := range tasks {
			if _, ok := task.(string); !ok {
				c.add(fmt.Sprintf("%s.tasks[%d]", prefix, i), "Task must be a string", task)
			}
		}
	default:
		c.add(prefix+".tasks", "Phase tasks must be an array", p["tasks"])
	}

	if deps, ok := p["dependencies"].([]any); ok {
		for i, dep := range deps {
			if err := ValidatePhaseID(dep); err != nil {
				c.add(fmt.Sprintf("%s.dependencies[%d]", prefix, i), "Invalid dependency ID: "+err.Message(), dep)
			}
		}
	} else {
		c.add(prefix+".dependencies", "Phase dependencies must be an array", p["dependencies"])
	}

	if cx, _ := p["complexity"].(string); !isComplexity(cx) {
		c.add(prefix+".complexity",
			fmt.Sprintf("Phase complexity must be one of: %s", strings.Join(ValidComplexities(), ", ")),
			p["complexity"])
	}

	if ctx, ok := p["required_context"].(map[string]any); ok {
		for _, key := range []string{"files", "concepts"} {
			if _, ok := ctx[key].([]any); !ok {
				c.add(prefix+".required_context."+key, fmt.Sprintf("required_context.%s must be an array", key), ctx[key])
			}
		}
		if refs, ok := ctx["artifacts_from"].([]any); ok {
			for i, ref := range refs {
				if err := ValidatePhaseID(ref); err != nil {
					c.add(fmt.Sprintf("%s.required_context.artifacts_from[%d]", prefix, i),
						"Invalid artifacts_from reference: "+err.Message(), ref)
				}
			}
		} else {
			c.add(prefix+".required_context.artifacts_from", "required_context.artifacts_from must be an array", ctx["artifacts_from"])
		}
	} else {
		c.add(prefix+".required_context", "Phase required_context must be an object", p["required_context"])
	}

	if !nonEmptyString(p["success_criteria"]) {
		c.add(prefix+".success_criteria", "Phase success_criteria must be a non-empty string", p["success_criteria"])
	}

	if v, present := p["constraints"]; present {
		if list, ok := v.([]any); ok {
			for i, item := range list {
				if _, ok := item.(string); !ok {
					c.add(fmt.Sprintf("%s.constraints[%d]", prefix, i), "Constraint must be a string", item)
				}
			}
		} else {
			c.add(prefix+".constraints", "Phase constraints must be an array if provided", v)
		}
	}
}

func isComplexity(s string) bool {
	switch Complexity(s) {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// ValidatePhases checks a decoded phase array: every phase individually,
// then duplicate ids, unresolved references, self-dependency, and cycles in
// the combined dependencies ∪ artifacts_from graph.
func ValidatePhases(raw any) errors.ValidationErrors {
	var c collector

	list, ok := raw.([]any)
	if !ok {
		c.add("phases", "Phases must be an array", raw)
		return c.errs
	}
	if len(list) == 0 {
		c.add("phases", "At least one phase is required", raw)
		return c.errs
	}

	known := make(map[string]int)
	for i, item := range list {
		c.phase(item, i)

		p, _ := item.(map[string]any)
		id, _ := p["id"].(string)
		if ValidatePhaseID(id) != nil {
			continue
		}
		if first, dup := known[id]; dup {
			c.add(fmt.Sprintf("phases[%d].id", i), fmt.Sprintf("Duplicate phase ID %q (first seen at index %d)", id, first), id)
			continue
		}
		known[id] = i
	}

	var phases []Phase
	for i, item := range list {
		p, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := p["id"].(string)
		ph := Phase{ID: id}

		deps, _ := p["dependencies"].([]any)
		for j, d := range deps {
			dep, ok := d.(string)
			if !ok || ValidatePhaseID(dep) != nil {
				continue
			}
			field := fmt.Sprintf("phases[%d].dependencies[%d]", i, j)
			if _, exists := known[dep]; !exists {
				c.add(field, fmt.Sprintf("Dependency %q references non-existent phase", dep), dep)
			}
			if dep == id {
				c.add(field, "Phase cannot depend on itself", dep)
				continue
			}
			ph.Dependencies = append(ph.Dependencies, dep)
		}

		ctx, _ := p["required_context"].(map[string]any)
		refs, _ := ctx["artifacts_from"].([]any)
		for j, r := range refs {
			ref, ok := r.(string)
			if !ok || ValidatePhaseID(ref) != nil {
				continue
			}
			field := fmt.Sprintf("phases[%d].required_context.artifacts_from[%d]", i, j)
			if _, exists := known[ref]; !exists {
				c.add(field, fmt.Sprintf("artifacts_from %q references non-existent phase", ref), ref)
			}
			if ref == id {
				c.add(field, "Phase cannot consume its own artifacts", ref)
				continue
			}
			ph.RequiredContext.ArtifactsFrom = append(ph.RequiredContext.ArtifactsFrom, ref)
		}

		if known[id] == i && IsValidPhaseID(id) {
			phases = append(phases, ph)
		}
	}

	if cycle := Graph(phases).FindCycle(); cycle != nil {
		c.errs = append(c.errs, errors.NewValidationError(errors.NewCycleError(cycle).Error()).WithField("phases").WithValue(cycle))
	}

	return c.errs
}

// Validate runs the whole-plan checks against already-typed phases, for
// phase sets that did not come from JSON.
func Validate(phases []Phase) errors.ValidationErrors {
	raw := make([]any, 0, len(phases))
	for _, p := range phases {
		raw = append(raw, p.toRaw())
	}
	return ValidatePhases(raw)
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func (p Phase) toRaw() map[string]any {
	m := map[string]any{
		"id":               p.ID,
		"title":            p.Title,
		"objective":        p.Objective,
		"tasks":            toAnySlice(p.Tasks),
		"dependencies":     toAnySlice(p.Dependencies),
		"complexity":       string(p.Complexity),
		"success_criteria": p.SuccessCriteria,
		"required_context": map[string]any{
			"files":          toAnySlice(p.RequiredContext.Files),
			"concepts":       toAnySlice(p.RequiredContext.Concepts),
			"artifacts_from": toAnySlice(p.RequiredContext.ArtifactsFrom),
		},
	}
	if p.Constraints != nil {
		m["constraints"] = toAnySlice(p.Constraints)
	}
	return m
}
