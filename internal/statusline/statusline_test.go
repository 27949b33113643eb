package statusline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/symphony/internal/plan"
	"github.com/Iron-Ham/symphony/internal/state"
)

func newDoc(t *testing.T, ids ...string) *state.Document {
	t.Helper()
	phases := make([]plan.Phase, 0, len(ids))
	for _, id := range ids {
		phases = append(phases, plan.Phase{ID: id, Title: id})
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return state.New("/plans/p.md", "run", phases, state.DefaultRetryPolicy(), now)
}

func set(doc *state.Document, st state.Status, ids ...string) {
	for _, id := range ids {
		doc.Phases[id].Status = st
	}
	doc.Recount()
}

func tenPhases(t *testing.T) *state.Document {
	return newDoc(t, "setup-db", "auth-middleware", "c", "d", "e", "f", "g", "h", "i", "j")
}

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		build func(*state.Document)
		want  string
	}{
		{
			name:  "fresh",
			build: func(*state.Document) {},
			want:  "[░░░░░░░░░░] 0/10",
		},
		{
			name: "running with failures",
			build: func(d *state.Document) {
				set(d, state.StatusComplete, "c", "d", "e", "f")
				set(d, state.StatusFailed, "g")
				set(d, state.StatusRunning, "setup-db", "auth-middleware")
			},
			want: "[████░░░░░░] 4/10 (1!) | setup-db, auth-middleware",
		},
		{
			name: "pending decisions",
			build: func(d *state.Document) {
				set(d, state.StatusComplete, "c")
				set(d, state.StatusAwaitingDecision, "d")
				d.SetDecision(state.PendingDecision{PhaseID: "d"})
				d.Status = state.RunAwaitingUserDecision
			},
			want: "[█░░░░░░░░░] 1/10 (1?)",
		},
		{
			name: "long running list",
			build: func(d *state.Document) {
				set(d, state.StatusRunning, "setup-db", "auth-middleware", "c", "d", "e")
			},
			want: "[░░░░░░░░░░] 0/10 | setup-db, auth-middleware, ...",
		},
		{
			name: "done",
			build: func(d *state.Document) {
				set(d, state.StatusComplete, d.PhaseIDs()...)
				d.Status = state.RunCompleted
			},
			want: "[Done] 10/10",
		},
		{
			name: "failed",
			build: func(d *state.Document) {
				set(d, state.StatusComplete, "c", "d", "e", "f", "g", "h", "i")
				set(d, state.StatusFailed, "j")
				d.Status = state.RunFailed
			},
			want: "[Failed] 7/10",
		},
		{
			name: "aborted",
			build: func(d *state.Document) {
				set(d, state.StatusComplete, "c", "d", "e", "f", "g")
				d.Status = state.RunAborted
			},
			want: "[Aborted] 5/10",
		},
	}

	r := New(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tenPhases(t)
			tt.build(doc)
			if got := r.Render(doc); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderRounding(t *testing.T) {
	doc := newDoc(t, "a", "b", "c")
	set(doc, state.StatusComplete, "a", "b")

	got := New(Options{BarWidth: 4}).Render(doc)
	if want := "[███░] 2/3"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderColor(t *testing.T) {
	doc := tenPhases(t)
	set(doc, state.StatusComplete, "c")
	set(doc, state.StatusFailed, "d")

	got := New(Options{Color: true}).Render(doc)
	for _, seq := range []string{"\x1b[32m", "\x1b[31m"} {
		if !strings.Contains(got, seq) {
			t.Errorf("Render() = %q, missing %q", got, seq)
		}
	}
}

func TestRenderFile(t *testing.T) {
	dir := t.TempDir()
	r := New(DefaultOptions())

	if got := r.RenderFile(filepath.Join(dir, "missing.json")); got != "" {
		t.Errorf("RenderFile(missing) = %q, want empty", got)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := r.RenderFile(bad); got != "" {
		t.Errorf("RenderFile(malformed) = %q, want empty", got)
	}

	good := filepath.Join(dir, "state.json")
	doc := newDoc(t, "a", "b")
	set(doc, state.StatusRunning, "b")
	if err := state.Save(good, doc, time.Now()); err != nil {
		t.Fatal(err)
	}
	if got, want := r.RenderFile(good), "[░░░░░░░░░░] 0/2 | b"; got != want {
		t.Errorf("RenderFile() = %q, want %q", got, want)
	}
}
