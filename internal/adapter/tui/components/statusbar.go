package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"docchat/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Enter"
	Desc string // e.g. "Send"
}

// StatusBarModel renders the bottom line: key hints on the left, conversation
// state on the right.
type StatusBarModel struct {
	Hints     []KeyHint
	Mode      string // request mode wire value
	Documents int
	Session   string
	Loading   bool
	width     int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// ModeBadge renders the request mode as a colored badge.
func ModeBadge(mode string) string {
	switch mode {
	case "literal-search":
		return theme.BadgeLiteral.Render("literal")
	case "reasoning-qa":
		return theme.BadgeReasoning.Render("reasoning")
	default:
		return theme.TextMuted.Render(mode)
	}
}

// ShortSession trims a session id for display.
func ShortSession(id string) string {
	const keep = 8
	if len(id) <= keep {
		return id
	}
	return id[len(id)-keep:]
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	sep := " " + theme.SymbolBullet + " "
	var parts []string
	if m.Loading {
		parts = append(parts, theme.TextInfo.Render(theme.SymbolSpinner+" working"))
	}
	parts = append(parts, theme.TextMuted.Render(fmt.Sprintf("%s %d docs", theme.SymbolDoc, m.Documents)))
	if m.Session != "" {
		parts = append(parts, theme.TextMuted.Render("session "+ShortSession(m.Session)))
	}
	right := strings.Join(parts, sep)
	if m.Mode != "" {
		right += " " + ModeBadge(m.Mode)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	bar := left + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(m.width).Render(bar)
}
