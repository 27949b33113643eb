// Package styles holds the shared palette for symphony's terminal output.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/symphony/internal/state"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	InfoColor      = lipgloss.Color("#60A5FA") // Blue
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Info      = lipgloss.NewStyle().Foreground(InfoColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Bold = lipgloss.NewStyle().Bold(true)

	Selected = lipgloss.NewStyle().
			Bold(true).
			Foreground(SecondaryColor)

	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)
)

// StatusColor returns the color for a phase status.
func StatusColor(status state.Status) lipgloss.Color {
	switch status {
	case state.StatusRunning:
		return SecondaryColor
	case state.StatusReady:
		return InfoColor
	case state.StatusComplete:
		return PrimaryColor
	case state.StatusRetrying:
		return WarningColor
	case state.StatusFailed, state.StatusAborted:
		return ErrorColor
	case state.StatusBlocked:
		return lipgloss.Color("#FB923C") // Orange
	default:
		return MutedColor
	}
}

// StatusIcon returns the glyph shown next to a phase status.
func StatusIcon(status state.Status) string {
	switch status {
	case state.StatusPending:
		return "○"
	case state.StatusReady:
		return "◎"
	case state.StatusRunning:
		return "●"
	case state.StatusComplete:
		return "✓"
	case state.StatusFailed:
		return "✗"
	case state.StatusAborted:
		return "⊘"
	case state.StatusBlocked:
		return "⏸"
	case state.StatusRetrying:
		return "↻"
	default:
		return "●"
	}
}

// LevelStyle returns the style for a log level name, matched case-insensitively.
func LevelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return Muted
	case "INFO":
		return Info
	case "WARN", "WARNING":
		return Warning
	case "ERROR":
		return Error
	default:
		return lipgloss.NewStyle()
	}
}
