package scheduler

import (
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/Iron-Ham/symphony/internal/errors"
	"github.com/Iron-Ham/symphony/internal/plan"
	"github.com/Iron-Ham/symphony/internal/state"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func phase(id string, deps []string, artifactsFrom ...string) plan.Phase {
	return plan.Phase{
		ID:              id,
		Title:           id,
		Objective:       id,
		Tasks:           []string{"t"},
		Dependencies:    deps,
		Complexity:      plan.ComplexityLow,
		RequiredContext: plan.RequiredContext{ArtifactsFrom: artifactsFrom},
		SuccessCriteria: "ok",
	}
}

// diamond: a -> {b, c} -> d
func diamond() *state.Document {
	return state.New("p", "r", []plan.Phase{
		phase("a", nil),
		phase("b", []string{"a"}),
		phase("c", []string{"a"}),
		phase("d", []string{"b", "c"}),
	}, state.DefaultRetryPolicy(), testNow)
}

func setStatus(doc *state.Document, st state.Status, ids ...string) {
	for _, id := range ids {
		doc.Phases[id].Status = st
	}
}

func TestReady(t *testing.T) {
	doc := diamond()
	s := New(doc)

	if got := s.Ready(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Ready() = %v, want [a]", got)
	}

	setStatus(doc, state.StatusComplete, "a")
	if got := s.Ready(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Ready() = %v, want [b c]", got)
	}
	if got := s.Unblocked("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Unblocked(a) = %v, want [b c]", got)
	}

	setStatus(doc, state.StatusComplete, "b")
	setStatus(doc, state.StatusRunning, "c")
	if got := s.Ready(); len(got) != 0 {
		t.Errorf("Ready() = %v, want none while c runs", got)
	}
	if got := s.IncompleteDependencies("d"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("IncompleteDependencies(d) = %v, want [c]", got)
	}

	setStatus(doc, state.StatusComplete, "c")
	if got := s.Ready(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("Ready() = %v, want [d]", got)
	}
}

func TestReadyHonorsArtifactsFrom(t *testing.T) {
	doc := state.New("p", "r", []plan.Phase{
		phase("api", nil),
		phase("docs", nil, "api"),
	}, state.DefaultRetryPolicy(), testNow)
	s := New(doc)

	if s.IsReady("docs") {
		t.Error("docs should wait for api through artifacts_from")
	}
	setStatus(doc, state.StatusComplete, "api")
	if !s.IsReady("docs") {
		t.Error("docs should be ready once api completes")
	}
}

func TestReadyStatusGate(t *testing.T) {
	doc := diamond()
	s := New(doc)
	for _, st := range []state.Status{state.StatusRunning, state.StatusRetrying, state.StatusBlocked, state.StatusAwaitingDecision} {
		setStatus(doc, st, "a")
		if s.IsReady("a") {
			t.Errorf("IsReady(a) with status %s = true, want false", st)
		}
	}
	setStatus(doc, state.StatusReady, "a")
	if !s.IsReady("a") {
		t.Error("IsReady(a) with status ready = false, want true")
	}
}

func TestDueRetries(t *testing.T) {
	doc := diamond()
	past := testNow.Add(-time.Second)
	future := testNow.Add(time.Minute)
	setStatus(doc, state.StatusRetrying, "a", "b", "c")
	doc.Phases["a"].NextRetryAt = &past
	doc.Phases["b"].NextRetryAt = &future

	got := New(doc).DueRetries(testNow)
	if !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("DueRetries() = %v, want [a c]", got)
	}
}

func TestArtifactsFor(t *testing.T) {
	doc := state.New("p", "r", []plan.Phase{
		phase("models", nil),
		phase("api", nil),
		phase("schema", nil),
		phase("handlers", []string{"api", "models", "schema"}, "models"),
	}, state.DefaultRetryPolicy(), testNow)
	setStatus(doc, state.StatusComplete, "models", "api")
	doc.Phases["models"].Artifacts = []state.Artifact{
		{Type: state.ArtifactFileCreated, Path: "models.go", Metadata: map[string]any{"lines": 40}},
		{Type: state.ArtifactNote, Content: "uses uuid ids"},
	}
	doc.Phases["api"].Artifacts = []state.Artifact{
		{Type: state.ArtifactFileModified, Path: "models.go"},
		{Type: state.ArtifactFileCreated, Path: "api.go"},
		{Type: state.ArtifactNote, Content: "rest"},
	}
	doc.Phases["schema"].Artifacts = []state.Artifact{{Type: state.ArtifactFileCreated, Path: "schema.sql"}}

	got, err := New(doc).ArtifactsFor("handlers")
	if err != nil {
		t.Fatalf("ArtifactsFor() error = %v", err)
	}

	type row struct{ path, content, source string }
	var rows []row
	for _, a := range got {
		rows = append(rows, row{a.Path, a.Content, a.Metadata[SourcePhaseKey].(string)})
	}
	want := []row{
		{"models.go", "", "models"},
		{"", "uses uuid ids", "models"},
		{"api.go", "", "api"},
		{"", "rest", "api"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ArtifactsFor() = %v, want %v", rows, want)
	}
	if got[0].Metadata["lines"] != 40 {
		t.Error("existing metadata should be preserved")
	}
	if _, ok := doc.Phases["models"].Artifacts[0].Metadata[SourcePhaseKey]; ok {
		t.Error("annotation must not leak into the stored artifact")
	}

	if _, err := New(doc).ArtifactsFor("ghost"); !errors.Is(err, errors.ErrPhaseNotFound) {
		t.Errorf("ArtifactsFor(ghost) error = %v, want ErrPhaseNotFound", err)
	}
	if got, _ := New(doc).ArtifactsFor("models"); got == nil || len(got) != 0 {
		t.Errorf("ArtifactsFor(models) = %v, want empty non-nil", got)
	}
}

func TestBlock(t *testing.T) {
	doc := state.New("p", "r", []plan.Phase{
		phase("a", nil),
		phase("b", []string{"a"}),
		phase("c", nil),
		phase("d", []string{"b"}),
		phase("e", nil, "d"),
		phase("f", []string{"b"}),
	}, state.DefaultRetryPolicy(), testNow)
	setStatus(doc, state.StatusComplete, "a")
	setStatus(doc, state.StatusFailed, "b")
	setStatus(doc, state.StatusReady, "f")

	blocked := New(doc).Block("b")
	if !reflect.DeepEqual(blocked, []string{"d", "f", "e"}) {
		t.Errorf("Block(b) = %v, want [d f e]", blocked)
	}
	if doc.Phases["c"].Status != state.StatusPending {
		t.Errorf("unrelated phase c = %s, want pending", doc.Phases["c"].Status)
	}
	if doc.Phases["e"].Status != state.StatusBlocked {
		t.Errorf("e = %s, want blocked through artifacts_from", doc.Phases["e"].Status)
	}

	// Already blocked phases are not reported twice.
	if again := New(doc).Block("b"); len(again) != 0 {
		t.Errorf("second Block(b) = %v, want none", again)
	}
}

func TestBlockSkipsActivePhases(t *testing.T) {
	doc := diamond()
	setStatus(doc, state.StatusFailed, "a")
	setStatus(doc, state.StatusRunning, "b")

	blocked := New(doc).Block("a")
	if !reflect.DeepEqual(blocked, []string{"c", "d"}) {
		t.Errorf("Block(a) = %v, want [c d]", blocked)
	}
	if doc.Phases["b"].Status != state.StatusRunning {
		t.Errorf("running phase b = %s, want untouched", doc.Phases["b"].Status)
	}
}

func TestBlockDeepChain(t *testing.T) {
	const n = 20000
	phases := make([]plan.Phase, n)
	for i := range phases {
		id := "p" + strconv.Itoa(i)
		var deps []string
		if i > 0 {
			deps = []string{"p" + strconv.Itoa(i-1)}
		}
		phases[i] = phase(id, deps)
	}
	doc := state.New("p", "r", phases, state.DefaultRetryPolicy(), testNow)
	setStatus(doc, state.StatusFailed, "p0")

	if blocked := New(doc).Block("p0"); len(blocked) != n-1 {
		t.Errorf("len(Block(p0)) = %d, want %d", len(blocked), n-1)
	}
}

func TestExpectingArtifacts(t *testing.T) {
	doc := state.New("p", "r", []plan.Phase{
		phase("a", nil),
		phase("z", nil, "a"),
		phase("b", []string{"a"}),
		phase("c", []string{"b"}),
	}, state.DefaultRetryPolicy(), testNow)

	if got := New(doc).ExpectingArtifacts("a"); !reflect.DeepEqual(got, []string{"z", "b"}) {
		t.Errorf("ExpectingArtifacts(a) = %v, want [z b]", got)
	}
}

func TestLevelsProperty(t *testing.T) {
	doc := diamond()
	levels, cycle := New(doc).Levels()
	if cycle != nil {
		t.Fatalf("Levels() cycle = %v", cycle)
	}

	levelOf := make(map[string]int)
	total := 0
	for i, lvl := range levels {
		for _, id := range lvl {
			levelOf[id] = i
			total++
		}
	}
	if total != len(doc.Plan.Phases) {
		t.Errorf("levels cover %d phases, want %d", total, len(doc.Plan.Phases))
	}
	for _, p := range doc.Plan.Phases {
		for _, dep := range p.AllDependencies() {
			if levelOf[dep] >= levelOf[p.ID] {
				t.Errorf("dependency %s (level %d) not below %s (level %d)", dep, levelOf[dep], p.ID, levelOf[p.ID])
			}
		}
	}
}
