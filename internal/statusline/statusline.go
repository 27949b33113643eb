// Package statusline renders a one-line progress summary of an
// orchestration document, for shell prompts and editor status bars:
//
//	[████░░░░░░] 4/10 (1!) | setup-db, auth-middleware
//
// Finished runs collapse to [Done], [Failed] or [Aborted] with the
// completed count. A missing or unreadable document renders as nothing.
package statusline

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Iron-Ham/symphony/internal/state"
	"github.com/Iron-Ham/symphony/internal/util"
)

const (
	filledCell = "█"
	emptyCell  = "░"
)

// Options controls the rendered line.
type Options struct {
	// BarWidth is the number of progress bar cells.
	BarWidth int
	// MaxRunning truncates the running-phase list to this many cells.
	MaxRunning int
	// Color enables ANSI colors.
	Color bool
}

// DefaultOptions returns a 10-cell bar and a 30-cell running list without
// colors.
func DefaultOptions() Options {
	return Options{BarWidth: 10, MaxRunning: 30}
}

// Renderer formats documents as status lines.
type Renderer struct {
	opts Options

	done    lipgloss.Style
	failed  lipgloss.Style
	running lipgloss.Style
	muted   lipgloss.Style
}

// New creates a Renderer. Zero option fields take their defaults.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.BarWidth <= 0 {
		opts.BarWidth = def.BarWidth
	}
	if opts.MaxRunning <= 0 {
		opts.MaxRunning = def.MaxRunning
	}

	// The renderer's profile is fixed so output does not depend on
	// whether stdout happens to be a terminal.
	lr := lipgloss.NewRenderer(io.Discard)
	if opts.Color {
		lr.SetColorProfile(termenv.ANSI)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{
		opts:    opts,
		done:    lr.NewStyle().Foreground(lipgloss.Color("2")),
		failed:  lr.NewStyle().Foreground(lipgloss.Color("1")),
		running: lr.NewStyle().Foreground(lipgloss.Color("3")),
		muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Render returns the status line for doc, or "" for a document without
// phases.
func (r *Renderer) Render(doc *state.Document) string {
	total := len(doc.Plan.Phases)
	if total == 0 {
		total = len(doc.Phases)
	}
	if total == 0 {
		return ""
	}
	completed, failed := doc.CompletedCount, doc.FailedCount
	count := fmt.Sprintf("%d/%d", completed, total)

	switch doc.Status {
	case state.RunCompleted:
		return r.done.Render("[Done]") + " " + count
	case state.RunFailed:
		return r.failed.Render("[Failed]") + " " + count
	case state.RunAborted:
		return r.muted.Render("[Aborted]") + " " + count
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(r.bar(completed, total))
	b.WriteString("] ")
	b.WriteString(count)
	if failed > 0 {
		b.WriteString(" " + r.failed.Render(fmt.Sprintf("(%d!)", failed)))
	}
	if n := len(doc.PendingDecisions); n > 0 {
		b.WriteString(" " + r.running.Render(fmt.Sprintf("(%d?)", n)))
	}
	if names := runningPhases(doc); len(names) > 0 {
		b.WriteString(" | " + r.running.Render(util.JoinTruncated(names, ", ", r.opts.MaxRunning)))
	}
	return b.String()
}

func (r *Renderer) bar(completed, total int) string {
	width := r.opts.BarWidth
	n := int(math.Round(float64(completed) / float64(total) * float64(width)))
	n = max(0, min(n, width))
	return r.done.Render(strings.Repeat(filledCell, n)) +
		r.muted.Render(strings.Repeat(emptyCell, width-n))
}

func runningPhases(doc *state.Document) []string {
	var out []string
	for _, id := range doc.PhaseIDs() {
		if ps, ok := doc.Phases[id]; ok && ps.Status == state.StatusRunning {
			out = append(out, id)
		}
	}
	return out
}

// RenderFile loads the document at path and renders it. Any load error
// yields "".
func (r *Renderer) RenderFile(path string) string {
	doc, err := state.Load(path)
	if err != nil {
		return ""
	}
	return r.Render(doc)
}
