package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/adapter/tui/theme"
)

// ModalPage is one page of modal content.
type ModalPage struct {
	Title   string
	Content string
}

// ModalModel is a full-screen overlay viewport. It can hold several pages
// (one per citation) and flips between them with left/right.
type ModalModel struct {
	Viewport viewport.Model
	Pages    []ModalPage
	Page     int
	Visible  bool
	width    int
	height   int
}

// NewModal creates a modal.
func NewModal() ModalModel {
	return ModalModel{}
}

// Open shows a single page.
func (m *ModalModel) Open(title, content string) {
	m.OpenPages([]ModalPage{{Title: title, Content: content}}, 0)
}

// OpenPages shows pages starting at index start. Out of range starts clamp.
func (m *ModalModel) OpenPages(pages []ModalPage, start int) {
	if len(pages) == 0 {
		return
	}
	if start < 0 {
		start = 0
	}
	if start >= len(pages) {
		start = len(pages) - 1
	}
	m.Pages = pages
	m.Visible = true
	if m.width > 0 {
		m.Viewport = viewport.New(m.width-4, m.height-4)
	} else {
		m.Viewport = viewport.New(80, 24)
	}
	m.Viewport.MouseWheelEnabled = true
	m.show(start)
}

func (m *ModalModel) show(i int) {
	m.Page = i
	m.Viewport.SetContent(m.Pages[i].Content)
	m.Viewport.GotoTop()
}

// Title returns the title of the current page.
func (m ModalModel) Title() string {
	if len(m.Pages) == 0 {
		return ""
	}
	return m.Pages[m.Page].Title
}

// Close hides the modal.
func (m *ModalModel) Close() {
	m.Visible = false
	m.Pages = nil
	m.Page = 0
}

// SetSize updates the modal dimensions.
func (m *ModalModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.Visible {
		m.Viewport.Width = w - 4
		m.Viewport.Height = h - 4
	}
}

// Update handles modal keys: Esc/q close, j/k scroll, h/l change page.
func (m ModalModel) Update(msg tea.Msg) (ModalModel, tea.Cmd) {
	if !m.Visible {
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc", "q":
			m.Close()
			return m, nil
		case "j", "down":
			m.Viewport.LineDown(3)
			return m, nil
		case "k", "up":
			m.Viewport.LineUp(3)
			return m, nil
		case "g":
			m.Viewport.GotoTop()
			return m, nil
		case "G":
			m.Viewport.GotoBottom()
			return m, nil
		case "l", "right":
			if m.Page < len(m.Pages)-1 {
				m.show(m.Page + 1)
			}
			return m, nil
		case "h", "left":
			if m.Page > 0 {
				m.show(m.Page - 1)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the modal overlay.
func (m ModalModel) View() string {
	if !m.Visible {
		return ""
	}

	title := m.Title()
	if len(m.Pages) > 1 {
		title = fmt.Sprintf("%s  (%d/%d)", title, m.Page+1, len(m.Pages))
	}
	titleBar := theme.Bold.Render("  " + title)

	scrollInfo := theme.TextMuted.Render(fmt.Sprintf(" %.0f%%", m.Viewport.ScrollPercent()*100))
	hint := "  Esc/q: close  j/k: scroll  g/G: top/bottom"
	if len(m.Pages) > 1 {
		hint += "  h/l: prev/next"
	}
	footer := theme.Dim.Render(hint) + "  " + scrollInfo

	inner := lipgloss.JoinVertical(lipgloss.Left, titleBar, m.Viewport.View(), footer)

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorderActive).
		Padding(0, 1).
		Width(m.width - 2).
		Height(m.height - 2).
		Render(inner)
}
