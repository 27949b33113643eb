// Package util holds small text helpers shared by the terminal views.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// TruncateString cuts s to maxLen runes, ending in Ellipsis when cut.
// It ignores escape codes; use TruncateANSI for styled text.
func TruncateString(s string, maxLen int) string {
	if maxLen <= len(Ellipsis) {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(Ellipsis)]) + Ellipsis
}

// TruncateANSI cuts s to maxWidth terminal cells, keeping escape
// sequences intact. The ellipsis counts towards the width.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= len(Ellipsis) {
		return Ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, Ellipsis)
}

// JoinTruncated joins items with sep and truncates the result to
// maxWidth cells. A non-positive maxWidth disables truncation.
func JoinTruncated(items []string, sep string, maxWidth int) string {
	s := strings.Join(items, sep)
	if maxWidth <= 0 {
		return s
	}
	return TruncateANSI(s, maxWidth)
}
