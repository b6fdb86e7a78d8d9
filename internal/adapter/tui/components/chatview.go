package components

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ChatViewModel is the conversation transcript: questions, answers with their
// citation lines, and local notes. The view stays pinned to the newest entry
// until the reader scrolls back to an earlier answer; asking a new question
// pins it again.
type ChatViewModel struct {
	Viewport viewport.Model
	Messages MessageListModel
	ready    bool
	pinned   bool
}

// NewChatView creates an empty transcript. The viewport exists after the first SetSize.
func NewChatView() ChatViewModel {
	return ChatViewModel{
		Messages: NewMessageList(),
		pinned:   true,
	}
}

// SetMaxMessages bounds the transcript. Dropped entries are counted in a
// header line; the conversation store keeps them.
func (m *ChatViewModel) SetMaxMessages(n int) {
	m.Messages.SetMaxMessages(n)
}

// SetMarkdown toggles glamour rendering of answers.
func (m *ChatViewModel) SetMarkdown(on bool) {
	m.Messages.Markdown = on
}

// SetSize resizes the viewport. Answers are re-rendered at the new width.
func (m *ChatViewModel) SetSize(w, h int) {
	m.Messages.SetWidth(w)
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refreshContent()
	if m.pinned {
		m.Viewport.GotoBottom()
	}
}

// AddMessage appends an entry. A user question re-pins the view so the answer
// that follows is visible.
func (m *ChatViewModel) AddMessage(msg ChatMessage) {
	m.Messages.Add(msg)
	m.refreshContent()
	if msg.Role == RoleUser {
		m.pinned = true
	}
	if m.pinned {
		m.Viewport.GotoBottom()
	}
}

// ScrollUp moves n lines toward older entries.
func (m *ChatViewModel) ScrollUp(n int) {
	m.Viewport.LineUp(n)
	m.pinned = m.Viewport.AtBottom()
}

// ScrollDown moves n lines toward newer entries. Reaching the end re-pins.
func (m *ChatViewModel) ScrollDown(n int) {
	m.Viewport.LineDown(n)
	m.pinned = m.Viewport.AtBottom()
}

// Top jumps to the oldest kept entry.
func (m *ChatViewModel) Top() {
	m.Viewport.GotoTop()
	m.pinned = m.Viewport.AtBottom()
}

// Latest jumps to the newest entry and pins the view.
func (m *ChatViewModel) Latest() {
	m.Viewport.GotoBottom()
	m.pinned = true
}

// Pinned reports whether new entries scroll into view.
func (m ChatViewModel) Pinned() bool { return m.pinned }

// Clear empties the transcript and pins the view.
func (m *ChatViewModel) Clear() {
	m.Messages.Clear()
	m.refreshContent()
	m.pinned = true
	m.Viewport.GotoTop()
}

// Len returns the number of entries shown.
func (m ChatViewModel) Len() int {
	return len(m.Messages.Messages)
}

// Update forwards mouse wheel and paging keys to the viewport.
func (m ChatViewModel) Update(msg tea.Msg) (ChatViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.pinned = m.Viewport.AtBottom()
	return m, cmd
}

func (m ChatViewModel) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	return m.Viewport.View()
}

func (m *ChatViewModel) refreshContent() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.Messages.View())
}
