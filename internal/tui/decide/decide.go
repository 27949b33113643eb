// Package decide is an interactive picker for pending retry decisions.
//
// It lists the phases awaiting a decision, shows the failure that stopped
// each one, and returns the option the user selected. Applying the choice
// is left to the caller.
package decide

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/symphony/internal/state"
	"github.com/Iron-Ham/symphony/internal/tui/styles"
)

var descriptions = map[state.Decision]string{
	state.DecisionRetryOnceMore: "set the phase ready for one more attempt",
	state.DecisionSkipPhase:     "mark it complete and let dependents run",
	state.DecisionAbortBranch:   "abort it and block everything downstream",
	state.DecisionAbortAll:      "abort every unfinished phase",
}

// Choice is the user's answer for one phase.
type Choice struct {
	PhaseID  string
	Decision state.Decision
}

// KeyMap holds the picker's bindings.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Next   key.Binding
	Prev   key.Binding
	Select key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns vim and arrow bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Next:   key.NewBinding(key.WithKeys("tab", "l"), key.WithHelp("tab", "next phase")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "h"), key.WithHelp("shift+tab", "prev phase")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Next, k.Select, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Next, k.Prev}, {k.Select, k.Quit}}
}

// Model is the bubbletea model of the picker.
type Model struct {
	decisions []state.PendingDecision
	current   int
	cursor    int
	keys      KeyMap
	help      help.Model
	width     int

	choice *Choice
}

// New creates a picker over decisions.
func New(decisions []state.PendingDecision) Model {
	return Model{
		decisions: decisions,
		keys:      DefaultKeyMap(),
		help:      help.New(),
	}
}

func (m Model) options() []state.Decision {
	if len(m.decisions) == 0 {
		return nil
	}
	if opts := m.decisions[m.current].Options; len(opts) > 0 {
		return opts
	}
	return state.Decisions()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if len(m.decisions) == 0 {
			return m, tea.Quit
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.options())-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Next):
			m.current = (m.current + 1) % len(m.decisions)
			m.cursor = 0
		case key.Matches(msg, m.keys.Prev):
			m.current = (m.current - 1 + len(m.decisions)) % len(m.decisions)
			m.cursor = 0
		case key.Matches(msg, m.keys.Select):
			m.choice = &Choice{
				PhaseID:  m.decisions[m.current].PhaseID,
				Decision: m.options()[m.cursor],
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if len(m.decisions) == 0 {
		return styles.Muted.Render("No pending decisions.") + "\n"
	}
	if m.choice != nil {
		return ""
	}

	pd := m.decisions[m.current]
	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("Pending decision %d of %d", m.current+1, len(m.decisions))))
	b.WriteString("\n\n")
	b.WriteString(styles.Bold.Render(pd.PhaseID))
	b.WriteString(styles.Muted.Render(fmt.Sprintf("  %s error, %d retries used", pd.ErrorCategory, pd.RetryCount)))
	b.WriteString("\n")
	b.WriteString(styles.Error.Render(pd.Error))
	b.WriteString("\n\n")

	for i, opt := range m.options() {
		line := fmt.Sprintf("%-16s %s", opt, descriptions[opt])
		if i == m.cursor {
			b.WriteString(styles.Selected.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	box := styles.ContentBox
	if m.width > 4 {
		box = box.MaxWidth(m.width)
	}
	return box.Render(strings.TrimRight(b.String(), "\n")) + "\n" + m.help.View(m.keys) + "\n"
}

// Choice returns the selection, if one was made.
func (m Model) Choice() (Choice, bool) {
	if m.choice == nil {
		return Choice{}, false
	}
	return *m.choice, true
}

// Run shows the picker on the given terminal streams until the user
// chooses or quits. ok is false when the user quit without choosing.
func Run(ctx context.Context, decisions []state.PendingDecision, in io.Reader, out io.Writer) (choice Choice, ok bool, err error) {
	p := tea.NewProgram(New(decisions),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return Choice{}, false, fmt.Errorf("decision picker: %w", err)
	}
	m, _ := final.(Model)
	choice, ok = m.Choice()
	return choice, ok, nil
}
