package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"docchat/internal/adapter/tui/theme"
)

// CommandDef defines a slash command for autocomplete.
type CommandDef struct {
	Name        string   // e.g. "/mode"
	Description string   // e.g. "Switch retrieval mode"
	Args        []string // fixed first-argument values, if any
}

// suggestion is one popup row. Value is what Accept puts in the input.
type suggestion struct {
	Label       string
	Description string
	Value       string
}

// AutocompleteModel manages a filtered popup of slash commands and their
// fixed arguments.
type AutocompleteModel struct {
	Commands []CommandDef
	Selected int
	Visible  bool
	filtered []suggestion
	prefix   string
	maxShow  int
	width    int
}

// NewAutocomplete creates an autocomplete model with the given commands.
func NewAutocomplete(commands []CommandDef) AutocompleteModel {
	return AutocompleteModel{
		Commands: commands,
		maxShow:  7,
	}
}

// SetWidth updates the popup width.
func (m *AutocompleteModel) SetWidth(w int) {
	m.width = w
}

// SetPrefix refreshes suggestions for the current input. "/mo" matches
// command names; "/mode l" matches the arguments of /mode.
func (m *AutocompleteModel) SetPrefix(input string) {
	m.prefix = strings.ToLower(input)
	m.filtered = nil

	name, arg, hasArg := strings.Cut(m.prefix, " ")
	switch {
	case !hasArg:
		for _, cmd := range m.Commands {
			if strings.HasPrefix(strings.ToLower(cmd.Name), name) {
				m.filtered = append(m.filtered, suggestion{
					Label:       cmd.Name,
					Description: cmd.Description,
					Value:       cmd.Name,
				})
			}
		}
	case !strings.Contains(arg, " "):
		for _, cmd := range m.Commands {
			if strings.ToLower(cmd.Name) != name {
				continue
			}
			for _, a := range cmd.Args {
				if strings.HasPrefix(a, arg) {
					m.filtered = append(m.filtered, suggestion{
						Label:       a,
						Description: cmd.Name,
						Value:       cmd.Name + " " + a,
					})
				}
			}
		}
	}

	m.Visible = len(m.filtered) > 0 && m.prefix != ""
	if m.Selected >= len(m.filtered) {
		m.Selected = 0
	}
}

// Len returns the number of current suggestions.
func (m AutocompleteModel) Len() int {
	return len(m.filtered)
}

// Hide hides the popup.
func (m *AutocompleteModel) Hide() {
	m.Visible = false
	m.filtered = nil
	m.prefix = ""
	m.Selected = 0
}

// SelectNext moves selection down.
func (m *AutocompleteModel) SelectNext() {
	if len(m.filtered) == 0 {
		return
	}
	m.Selected = (m.Selected + 1) % len(m.filtered)
}

// SelectPrev moves selection up.
func (m *AutocompleteModel) SelectPrev() {
	if len(m.filtered) == 0 {
		return
	}
	m.Selected--
	if m.Selected < 0 {
		m.Selected = len(m.filtered) - 1
	}
}

// Accept returns the selected input text and hides the popup.
func (m *AutocompleteModel) Accept() string {
	if len(m.filtered) == 0 {
		return ""
	}
	value := m.filtered[m.Selected].Value
	m.Hide()
	return value
}

// Height returns how many lines the popup will occupy.
func (m AutocompleteModel) Height() int {
	if !m.Visible {
		return 0
	}
	return min(len(m.filtered), m.maxShow) + 2 // border top/bottom
}

// View renders the autocomplete popup.
func (m AutocompleteModel) View() string {
	if !m.Visible || len(m.filtered) == 0 {
		return ""
	}

	popupWidth := max(m.width-4, 30)

	show := m.filtered
	if len(show) > m.maxShow {
		show = show[:m.maxShow]
	}

	const labelW = 12
	var lines []string
	for i, s := range show {
		label := s.Label
		if len(label) < labelW {
			label += strings.Repeat(" ", labelW-len(label))
		}

		desc := s.Description
		maxDesc := popupWidth - labelW - 4
		if maxDesc > 0 && len(desc) > maxDesc {
			desc = desc[:maxDesc-1] + theme.SymbolEllipsis
		}

		line := label + " " + theme.TextMuted.Render(desc)
		if i == m.Selected {
			line = theme.TextInfo.Render(theme.SymbolArrowR+" ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorderActive).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}
