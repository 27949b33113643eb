package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/symphony/internal/errors"
)

func phaseJSON(id string, deps []string, artifactsFrom []string) map[string]any {
	if deps == nil {
		deps = []string{}
	}
	if artifactsFrom == nil {
		artifactsFrom = []string{}
	}
	return map[string]any{
		"id":           id,
		"title":        "Phase " + id,
		"objective":    "Do " + id,
		"tasks":        []string{"task one"},
		"dependencies": deps,
		"complexity":   "low",
		"required_context": map[string]any{
			"files":          []string{},
			"concepts":       []string{},
			"artifacts_from": artifactsFrom,
		},
		"success_criteria": id + " works",
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func markdownPlan(body []byte) []byte {
	return []byte("# Plan\n\nSome prose.\n\n```symphony-phases\n" + string(body) + "\n```\n\nTrailing notes.\n")
}

func fieldsOf(errs errors.ValidationErrors) []string {
	return errs.Fields()
}

func hasMessage(errs errors.ValidationErrors, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e.Message(), substr) {
			return true
		}
	}
	return false
}

func TestExtractBlock(t *testing.T) {
	t.Run("single block", func(t *testing.T) {
		got, err := ExtractBlock(markdownPlan([]byte(`[1, 2]`)))
		if err != nil {
			t.Fatalf("ExtractBlock() error = %v", err)
		}
		if string(got) != "[1, 2]" {
			t.Errorf("ExtractBlock() = %q, want %q", got, "[1, 2]")
		}
	})

	t.Run("ignores other fences", func(t *testing.T) {
		src := "```json\n{\"a\":1}\n```\n\n```symphony-phases\n[]\n```\n"
		got, err := ExtractBlock([]byte(src))
		if err != nil {
			t.Fatalf("ExtractBlock() error = %v", err)
		}
		if string(got) != "[]" {
			t.Errorf("ExtractBlock() = %q, want []", got)
		}
	})

	t.Run("nested in list", func(t *testing.T) {
		src := "- step\n\n  ```symphony-phases\n  [\"x\"]\n  ```\n"
		got, err := ExtractBlock([]byte(src))
		if err != nil {
			t.Fatalf("ExtractBlock() error = %v", err)
		}
		if string(got) != `["x"]` {
			t.Errorf("ExtractBlock() = %q", got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ExtractBlock([]byte("# nothing here\n"))
		if !errors.Is(err, errors.ErrNoPhasesBlock) {
			t.Errorf("ExtractBlock() error = %v, want ErrNoPhasesBlock", err)
		}
		if HasBlock([]byte("# nothing here\n")) {
			t.Error("HasBlock() = true, want false")
		}
	})

	t.Run("ambiguous", func(t *testing.T) {
		src := "```symphony-phases\n[]\n```\n\n```symphony-phases\n[]\n```\n"
		_, err := ExtractBlock([]byte(src))
		if !errors.Is(err, errors.ErrPlanInvalid) {
			t.Errorf("ExtractBlock() error = %v, want ErrPlanInvalid", err)
		}
	})
}

func TestParse(t *testing.T) {
	body := mustJSON(t, []any{
		phaseJSON("setup", nil, nil),
		phaseJSON("build", []string{"setup"}, nil),
		phaseJSON("docs", nil, []string{"build"}),
	})

	phases, err := Parse(markdownPlan(body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(phases) != 3 {
		t.Fatalf("len(phases) = %d, want 3", len(phases))
	}
	if phases[1].Dependencies[0] != "setup" {
		t.Errorf("build dependencies = %v", phases[1].Dependencies)
	}
	if phases[2].RequiredContext.ArtifactsFrom[0] != "build" {
		t.Errorf("docs artifacts_from = %v", phases[2].RequiredContext.ArtifactsFrom)
	}
	if phases[0].Complexity != ComplexityLow {
		t.Errorf("Complexity = %q, want low", phases[0].Complexity)
	}
}

func TestParseJSONSyntaxError(t *testing.T) {
	_, err := ParseJSON([]byte("[\n  {\"id\": \"a\",,}\n]"))
	var verrs errors.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("ParseJSON() error = %v, want ValidationErrors", err)
	}
	if !strings.Contains(verrs[0].Message(), "line 2") {
		t.Errorf("message = %q, want line 2", verrs[0].Message())
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseFile(filepath.Join(dir, "missing.md"))
	if !errors.Is(err, errors.ErrPlanNotFound) {
		t.Errorf("ParseFile(missing) error = %v, want ErrPlanNotFound", err)
	}

	path := filepath.Join(dir, "plan.md")
	body := mustJSON(t, []any{phaseJSON("only", nil, nil)})
	if err := os.WriteFile(path, markdownPlan(body), 0o644); err != nil {
		t.Fatal(err)
	}
	phases, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(phases) != 1 || phases[0].ID != "only" {
		t.Errorf("ParseFile() = %+v", phases)
	}
}

func TestValidatePhaseID(t *testing.T) {
	tests := []struct {
		id    any
		valid bool
	}{
		{"setup", true},
		{"phase-1", true},
		{"test-integration-api", true},
		{"a", true},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
		{"", false},
		{"Phase1", false},
		{"test_phase", false},
		{"1phase", false},
		{"phase-", false},
		{"phase--x", false},
		{"phase$(rm -rf /)", false},
		{"phase`whoami`", false},
		{"../etc", false},
		{42, false},
		{nil, false},
	}

	for _, tt := range tests {
		name, _ := tt.id.(string)
		t.Run(name, func(t *testing.T) {
			err := ValidatePhaseID(tt.id)
			if (err == nil) != tt.valid {
				t.Errorf("ValidatePhaseID(%v) = %v, want valid=%v", tt.id, err, tt.valid)
			}
		})
	}
}

func TestValidatePhase(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"bad id", func(p map[string]any) { p["id"] = "Bad" }, "phases[0].id"},
		{"blank title", func(p map[string]any) { p["title"] = "  " }, "phases[0].title"},
		{"missing objective", func(p map[string]any) { delete(p, "objective") }, "phases[0].objective"},
		{"empty tasks", func(p map[string]any) { p["tasks"] = []any{} }, "phases[0].tasks"},
		{"tasks not array", func(p map[string]any) { p["tasks"] = "do it" }, "phases[0].tasks"},
		{"non-string task", func(p map[string]any) { p["tasks"] = []any{"a", 3} }, "phases[0].tasks[1]"},
		{"deps not array", func(p map[string]any) { p["dependencies"] = nil }, "phases[0].dependencies"},
		{"bad complexity", func(p map[string]any) { p["complexity"] = "extreme" }, "phases[0].complexity"},
		{"missing context", func(p map[string]any) { delete(p, "required_context") }, "phases[0].required_context"},
		{"context files", func(p map[string]any) {
			p["required_context"].(map[string]any)["files"] = "x"
		}, "phases[0].required_context.files"},
		{"bad artifacts ref", func(p map[string]any) {
			p["required_context"].(map[string]any)["artifacts_from"] = []any{"Nope"}
		}, "phases[0].required_context.artifacts_from[0]"},
		{"blank success", func(p map[string]any) { p["success_criteria"] = "" }, "phases[0].success_criteria"},
		{"constraints not array", func(p map[string]any) { p["constraints"] = "none" }, "phases[0].constraints"},
		{"non-string constraint", func(p map[string]any) { p["constraints"] = []any{true} }, "phases[0].constraints[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw map[string]any
			if err := json.Unmarshal(mustJSON(t, phaseJSON("valid", nil, nil)), &raw); err != nil {
				t.Fatal(err)
			}
			tt.mutate(raw)

			errs := ValidatePhase(raw, 0)
			if len(errs) != 1 {
				t.Fatalf("ValidatePhase() = %v, want exactly one error", errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}

	if errs := ValidatePhase("nope", -1); len(errs) != 1 || errs[0].Field != "phase" {
		t.Errorf("ValidatePhase(non-object) = %v", errs)
	}
}

func TestValidatePhases(t *testing.T) {
	t.Run("not an array", func(t *testing.T) {
		errs := ValidatePhases(map[string]any{})
		if !hasMessage(errs, "Phases must be an array") {
			t.Errorf("errs = %v", errs)
		}
	})

	t.Run("empty", func(t *testing.T) {
		errs := ValidatePhases([]any{})
		if !hasMessage(errs, "At least one phase is required") {
			t.Errorf("errs = %v", errs)
		}
	})

	decode := func(t *testing.T, phases ...map[string]any) any {
		var raw any
		if err := json.Unmarshal(mustJSON(t, phases), &raw); err != nil {
			t.Fatal(err)
		}
		return raw
	}

	t.Run("duplicate id", func(t *testing.T) {
		errs := ValidatePhases(decode(t, phaseJSON("a", nil, nil), phaseJSON("a", nil, nil)))
		if !hasMessage(errs, `Duplicate phase ID "a" (first seen at index 0)`) {
			t.Errorf("errs = %v", errs)
		}
	})

	t.Run("unresolved dependency", func(t *testing.T) {
		errs := ValidatePhases(decode(t, phaseJSON("a", []string{"ghost"}, nil)))
		if !hasMessage(errs, `Dependency "ghost" references non-existent phase`) {
			t.Errorf("errs = %v", errs)
		}
		if fieldsOf(errs)[0] != "phases[0].dependencies[0]" {
			t.Errorf("fields = %v", fieldsOf(errs))
		}
	})

	t.Run("unresolved artifacts_from", func(t *testing.T) {
		errs := ValidatePhases(decode(t, phaseJSON("a", nil, []string{"ghost"})))
		if !hasMessage(errs, `artifacts_from "ghost" references non-existent phase`) {
			t.Errorf("errs = %v", errs)
		}
	})

	t.Run("self dependency", func(t *testing.T) {
		errs := ValidatePhases(decode(t, phaseJSON("a", []string{"a"}, nil)))
		if !hasMessage(errs, "Phase cannot depend on itself") {
			t.Errorf("errs = %v", errs)
		}
		if hasMessage(errs, "Circular dependency") {
			t.Errorf("self dependency should not also be reported as a cycle: %v", errs)
		}
	})

	t.Run("cycle through dependencies", func(t *testing.T) {
		errs := ValidatePhases(decode(t,
			phaseJSON("a", []string{"c"}, nil),
			phaseJSON("b", []string{"a"}, nil),
			phaseJSON("c", []string{"b"}, nil),
		))
		if !hasMessage(errs, "Circular dependency detected: a -> c -> b -> a") {
			t.Errorf("errs = %v", errs)
		}
	})

	t.Run("cycle through artifacts_from", func(t *testing.T) {
		errs := ValidatePhases(decode(t,
			phaseJSON("a", nil, []string{"b"}),
			phaseJSON("b", []string{"a"}, nil),
		))
		if !hasMessage(errs, "Circular dependency detected: a -> b -> a") {
			t.Errorf("errs = %v", errs)
		}
		var err error = errs
		if !errors.Is(err, errors.ErrPlanInvalid) {
			t.Error("ValidationErrors should match ErrPlanInvalid")
		}
	})

	t.Run("valid diamond", func(t *testing.T) {
		errs := ValidatePhases(decode(t,
			phaseJSON("a", nil, nil),
			phaseJSON("b", []string{"a"}, nil),
			phaseJSON("c", []string{"a"}, nil),
			phaseJSON("d", []string{"b", "c"}, []string{"a"}),
		))
		if len(errs) != 0 {
			t.Errorf("errs = %v, want none", errs)
		}
	})
}

func TestValidateTyped(t *testing.T) {
	p := Phase{
		ID:              "solo",
		Title:           "Solo",
		Objective:       "Stand alone",
		Tasks:           []string{"one"},
		Complexity:      ComplexityMedium,
		SuccessCriteria: "done",
	}
	if errs := Validate([]Phase{p}); len(errs) != 0 {
		t.Errorf("Validate() = %v, want none", errs)
	}

	p.Tasks = nil
	if errs := Validate([]Phase{p}); len(errs) != 1 {
		t.Errorf("Validate() = %v, want one error", errs)
	}
}

func TestAllDependenciesAndGraph(t *testing.T) {
	phases := []Phase{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"b"}, RequiredContext: RequiredContext{ArtifactsFrom: []string{"a", "b", "ghost"}}},
	}

	if got := phases[2].AllDependencies(); !reflect.DeepEqual(got, []string{"b", "a", "ghost"}) {
		t.Errorf("AllDependencies() = %v, want [b a ghost]", got)
	}

	g := Graph(phases)
	if g.Has("ghost") {
		t.Error("Graph() should drop unknown references")
	}
	if got := g.Dependencies("c"); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Dependencies(c) = %v, want [b a]", got)
	}
	levels, cycle := g.Levels()
	if cycle != nil {
		t.Fatal(cycle)
	}
	want := [][]string{{"a"}, {"b"}, {"c"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levels() = %v, want %v", levels, want)
	}

	if idx := Index(phases); idx["b"].Dependencies[0] != "a" {
		t.Errorf("Index() = %v", idx)
	}
}

func TestFinder(t *testing.T) {
	root := t.TempDir()
	block := markdownPlan([]byte("[]"))

	write := func(rel string, content []byte, age time.Duration) string {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}
		mt := time.Now().Add(-age)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatal(err)
		}
		return path
	}

	older := write("2025/old-plan.md", block, 2*time.Hour)
	newer := write("nested/deeper/new-plan.md", block, time.Hour)
	write("plain.md", []byte("# no block"), 0)
	write(".hidden/secret.md", block, 0)
	write("node_modules/pkg/readme.md", block, 0)
	write("notes.txt", block, 0)
	draft := write("drafts/wip.md", block, 10*time.Minute)

	t.Run("newest wins", func(t *testing.T) {
		f, err := NewFinder(nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := f.Latest(root)
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if got != draft {
			t.Errorf("Latest() = %q, want %q", got, draft)
		}

		all, _ := f.Candidates(root)
		if len(all) != 3 {
			t.Errorf("len(Candidates) = %d, want 3: %v", len(all), all)
		}
	})

	t.Run("exclude pattern", func(t *testing.T) {
		f, err := NewFinder([]string{"**.md"}, []string{"drafts/**"})
		if err != nil {
			t.Fatal(err)
		}
		got, err := f.Latest(root)
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if got != newer {
			t.Errorf("Latest() = %q, want %q", got, newer)
		}
	})

	t.Run("include pattern", func(t *testing.T) {
		f, err := NewFinder([]string{"2025/*.md"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := f.Latest(root)
		if err != nil {
			t.Fatalf("Latest() error = %v", err)
		}
		if got != older {
			t.Errorf("Latest() = %q, want %q", got, older)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		f, _ := NewFinder([]string{"none/*.md"}, nil)
		if _, err := f.Latest(root); !errors.Is(err, errors.ErrPlanNotFound) {
			t.Errorf("Latest() error = %v, want ErrPlanNotFound", err)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		f, _ := NewFinder(nil, nil)
		if _, err := f.Latest(filepath.Join(root, "absent")); !errors.Is(err, errors.ErrPlanNotFound) {
			t.Errorf("Latest() error = %v, want ErrPlanNotFound", err)
		}
	})

	t.Run("bad pattern", func(t *testing.T) {
		if _, err := NewFinder([]string{"[a-"}, nil); err == nil {
			t.Error("NewFinder() error = nil, want error")
		}
	})
}
