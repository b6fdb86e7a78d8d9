package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/adapter/tui/components"
	"docchat/internal/adapter/tui/theme"
	"docchat/internal/adapter/tui/uxerror"
	"docchat/internal/domain"
	"docchat/internal/usecase"
	"docchat/internal/usecase/store"
)

const defaultDocsPage = 50

// ChatModelDeps are dependencies injected into the chat model.
type ChatModelDeps struct {
	Context     context.Context // parent of every request; nil = Background
	Store       *store.Store
	Submitter   Submitter
	Documents   Documents
	Catalog     *usecase.Catalog // nil = English
	Logger      *slog.Logger
	Mode        domain.RequestMode // initial mode; invalid = literal-search
	Markdown    bool
	MaxMessages int // 0 = 1000
	DocsPage    int // listing size for /docs; 0 = 50
}

// ChatModel is the root Bubble Tea model for the chat TUI. It never mutates
// conversation state itself: it dispatches through the orchestrator and the
// document service and renders the snapshots they produce.
type ChatModel struct {
	deps ChatModelDeps

	chatView  components.ChatViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	spinner   spinner.Model
	modal     components.ModalModel

	state  store.State
	synced int    // store messages already in chatView
	lastID string // id of the last synced store message
	mode   domain.RequestMode
	cancel context.CancelFunc // cancels the in-flight submission

	width    int
	height   int
	quitting bool
	scroll   bool // input blurred, j/k scroll the transcript
}

// NewChatModel creates the root chat model.
func NewChatModel(deps ChatModelDeps) ChatModel {
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Catalog == nil {
		deps.Catalog = usecase.NewCatalog(usecase.DefaultLocale)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if !deps.Mode.Valid() {
		deps.Mode = domain.ModeLiteralSearch
	}
	if deps.MaxMessages <= 0 {
		deps.MaxMessages = 1000
	}
	if deps.DocsPage <= 0 {
		deps.DocsPage = defaultDocsPage
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	chatView := components.NewChatView()
	chatView.SetMaxMessages(deps.MaxMessages)
	chatView.SetMarkdown(deps.Markdown)

	input := components.NewInputArea()
	input.Autocomplete = components.NewAutocomplete(commandDefs())

	sb := components.NewStatusBar()
	sb.Hints = defaultHints()
	sb.Mode = string(deps.Mode)

	m := ChatModel{
		deps:      deps,
		chatView:  chatView,
		input:     input,
		statusBar: sb,
		spinner:   s,
		modal:     components.NewModal(),
		mode:      deps.Mode,
	}
	m.applyState(deps.Store.State())
	return m
}

func commandDefs() []components.CommandDef {
	return []components.CommandDef{
		{Name: "/mode", Description: "Show or switch retrieval mode", Args: []string{"literal", "reasoning"}},
		{Name: "/upload", Description: "Upload PDF/TXT files"},
		{Name: "/docs", Description: "List uploaded documents"},
		{Name: "/rm", Description: "Remove a document by id"},
		{Name: "/doc", Description: "Show a document and its chunks"},
		{Name: "/stats", Description: "Show collection statistics"},
		{Name: "/explain", Description: "Explain how the last answer was derived"},
		{Name: "/followup", Description: "Ask a follow-up to the last answer"},
		{Name: "/source", Description: "Show a citation of the last answer"},
		{Name: "/clear", Description: "Clear the conversation"},
		{Name: "/cancel", Description: "Cancel the active request"},
		{Name: "/help", Description: "Show available commands"},
		{Name: "/quit", Description: "Exit docchat"},
	}
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "Ctrl+R", Desc: "Mode"},
		{Key: "Esc", Desc: "Scroll"},
		{Key: "Ctrl+C", Desc: "Cancel/Quit"},
	}
}

func scrollHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "j/k", Desc: "Scroll"},
		{Key: "g/G", Desc: "Top/bottom"},
		{Key: "i", Desc: "Input"},
	}
}

// Mode returns the sticky retrieval mode.
func (m ChatModel) Mode() domain.RequestMode { return m.mode }

// Init loads the document list so the status bar starts with a count.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		refreshCmd(m.deps.Context, m.deps.Documents, m.deps.DocsPage),
	)
}

// Update handles all incoming messages.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.modal.SetSize(m.width, m.height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case StateMsg:
		m.applyState(msg.State)
		return m, nil

	case SubmitDoneMsg:
		m.cancelRequest()
		// Branch failures already reached the transcript through the store.
		if msg.Err != nil && msg.Message.ID == "" {
			m.note(components.RoleError, uxerror.Humanize(msg.Err).Render())
		}
		return m, nil

	case UploadDoneMsg:
		return m.handleUploadDone(msg)

	case DocsDoneMsg:
		return m.handleDocsDone(msg)

	case DocDoneMsg:
		return m.handleDocDone(msg)

	case StatsDoneMsg:
		if msg.Err != nil {
			m.note(components.RoleError, uxerror.Humanize(msg.Err).Render())
			return m, nil
		}
		m.note(components.RoleSystem, statsSummary(msg.Stats))
		return m, nil

	case RemoveDoneMsg:
		if msg.Err != nil && errors.Is(msg.Err, domain.ErrInvalidInput) {
			m.note(components.RoleError, uxerror.Humanize(msg.Err).Render())
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		m.cancelRequest()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if _, isMouse := msg.(tea.MouseMsg); !isMouse && !m.scroll {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// applyState renders a store snapshot. Snapshots can arrive out of order;
// older revisions are dropped. Messages are appended incrementally and the
// transcript is rebuilt when the store history no longer extends what is
// shown (after ClearMessages or SetMessages).
func (m *ChatModel) applyState(st store.State) {
	if st.Revision < m.state.Revision {
		return
	}
	m.state = st

	if m.synced > len(st.Messages) || (m.synced > 0 && st.Messages[m.synced-1].ID != m.lastID) {
		m.chatView.Clear()
		m.synced = 0
	}
	for _, msg := range st.Messages[m.synced:] {
		m.chatView.AddMessage(m.toChatMessage(msg))
	}
	m.synced = len(st.Messages)
	if m.synced > 0 {
		m.lastID = st.Messages[m.synced-1].ID
	} else {
		m.lastID = ""
	}

	m.statusBar.Documents = len(st.Documents)
	m.statusBar.Session = st.SessionID
	m.statusBar.Loading = st.IsLoading
	m.input.SetBusy(st.IsLoading)
}

func (m ChatModel) toChatMessage(msg domain.ConversationMessage) components.ChatMessage {
	role := components.RoleUser
	if msg.Role == domain.RoleAssistant {
		role = components.RoleAssistant
	}
	refs := make([]components.SourceRef, 0, len(msg.Sources))
	for _, s := range msg.Sources {
		refs = append(refs, components.SourceRef{
			Title:     sourceTitle(s),
			Locality:  m.deps.Catalog.Locality(s),
			Relevance: usecase.FormatRelevance(s.RelevanceScore),
		})
	}
	return components.ChatMessage{
		ID:        msg.ID,
		Role:      role,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		Sources:   refs,
	}
}

func sourceTitle(s domain.CitationSource) string {
	switch {
	case s.DocumentTitle != "":
		return s.DocumentTitle
	case s.DocumentID != "":
		return s.DocumentID
	default:
		return s.ChunkID
	}
}

// note adds a local message that is not part of the conversation state.
func (m *ChatModel) note(role components.MessageRole, text string) {
	m.chatView.AddMessage(components.ChatMessage{Role: role, Content: text})
}

// View renders the entire chat UI.
func (m ChatModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}
	if m.modal.Visible {
		return m.modal.View()
	}

	parts := []string{m.chatView.View()}
	if b := m.banner(); b != "" {
		parts = append(parts, b)
	}

	inputView := m.input.View()
	if m.state.IsLoading {
		inputView = m.spinner.View() + " " + theme.TextMuted.Render("working...") + "\n" + inputView
	}
	parts = append(parts, components.Divider(m.width), inputView, m.statusBar.View())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m ChatModel) banner() string {
	if m.state.Error != nil {
		return theme.BannerError.Render(uxerror.ForState(m.state.Error))
	}
	if m.state.Success != "" {
		return theme.BannerSuccess.Render(theme.SymbolSuccess + " " + m.state.Success)
	}
	return ""
}

// layout recalculates sizes for all sub-models.
func (m *ChatModel) layout() {
	const (
		inputH   = 3
		statusH  = 1
		dividerH = 1
		bannerH  = 1
		spinH    = 1
	)
	contentH := max(m.height-inputH-statusH-dividerH-bannerH-spinH, 5)

	m.statusBar.SetWidth(m.width)
	m.chatView.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
}

// handleKey processes keyboard input.
func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	if m.modal.Visible {
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.cancel != nil {
			m.cancelRequest()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlR:
		m.setMode(m.mode.Toggle())
		return m, nil

	case tea.KeyCtrlL:
		return m.handleSlashCommand("/clear", nil)

	case tea.KeyEsc:
		if !m.scroll && !m.input.Autocomplete.Visible {
			m.scroll = true
			m.input.Textarea.Blur()
			m.statusBar.Hints = scrollHints()
			return m, nil
		}

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	if m.scroll {
		switch msg.String() {
		case "j", "down":
			m.chatView.ScrollDown(3)
		case "k", "up":
			m.chatView.ScrollUp(3)
		case "g":
			m.chatView.Top()
		case "G":
			m.chatView.Latest()
		case "i", "enter":
			m.scroll = false
			m.input.Textarea.Focus()
			m.statusBar.Hints = defaultHints()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit processes user input submission.
func (m ChatModel) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if cmd, args, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd, args)
	}

	if m.busy() {
		m.note(components.RoleSystem, "A request is still running. Wait for it to finish or use /cancel.")
		return m, nil
	}

	ctx := m.startRequest()
	m.deps.Logger.Debug("submit", "mode", m.mode, "chars", len(value))
	return m, submitCmd(ctx, m.deps.Submitter, value, m.mode)
}

func (m ChatModel) busy() bool {
	return m.cancel != nil || m.state.IsLoading
}

// startRequest derives the cancellable context of a conversational request.
func (m *ChatModel) startRequest() context.Context {
	ctx, cancel := context.WithCancel(m.deps.Context)
	m.cancel = cancel
	return ctx
}

func (m *ChatModel) cancelRequest() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *ChatModel) setMode(mode domain.RequestMode) {
	m.mode = mode
	m.statusBar.Mode = string(mode)
}

// handleSlashCommand processes a slash command.
func (m ChatModel) handleSlashCommand(cmd string, args []string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/help":
		m.note(components.RoleSystem, helpText)
		return m, nil

	case "/quit", "/exit":
		m.quitting = true
		m.cancelRequest()
		return m, tea.Quit

	case "/mode":
		if len(args) == 0 {
			m.note(components.RoleSystem, fmt.Sprintf("Mode: %s (use /mode literal|reasoning or Ctrl+R)", m.mode))
			return m, nil
		}
		mode, err := domain.ParseRequestMode(args[0])
		if err != nil {
			m.note(components.RoleError, uxerror.Humanize(err).Render())
			return m, nil
		}
		m.setMode(mode)
		m.note(components.RoleSystem, theme.SymbolSuccess+" Mode: "+string(mode))
		return m, nil

	case "/upload":
		if len(args) == 0 {
			m.note(components.RoleSystem, "Usage: /upload <file.pdf|file.txt> [more files...]")
			return m, nil
		}
		if m.busy() {
			m.note(components.RoleSystem, "A request is still running. Upload again once it finishes.")
			return m, nil
		}
		return m, uploadCmd(m.deps.Context, m.deps.Documents, args)

	case "/docs":
		return m, refreshCmd(m.deps.Context, m.deps.Documents, m.deps.DocsPage)

	case "/rm":
		if len(args) != 1 {
			m.note(components.RoleSystem, "Usage: /rm <document-id>  (ids are listed by /docs)")
			return m, nil
		}
		return m, removeCmd(m.deps.Context, m.deps.Documents, args[0])

	case "/doc":
		if len(args) != 1 {
			m.note(components.RoleSystem, "Usage: /doc <document-id>  (ids are listed by /docs)")
			return m, nil
		}
		return m, docCmd(m.deps.Context, m.deps.Documents, args[0])

	case "/stats":
		return m, statsCmd(m.deps.Context, m.deps.Documents)

	case "/explain":
		if m.busy() {
			m.note(components.RoleSystem, "A request is still running. Wait for it to finish or use /cancel.")
			return m, nil
		}
		if _, ok := usecase.LastTurn(m.state.Messages); !ok {
			m.note(components.RoleSystem, "There is no answer to explain yet.")
			return m, nil
		}
		return m, explainCmd(m.startRequest(), m.deps.Submitter)

	case "/followup":
		question := strings.Join(args, " ")
		if question == "" {
			m.note(components.RoleSystem, "Usage: /followup <question>")
			return m, nil
		}
		if m.busy() {
			m.note(components.RoleSystem, "A request is still running. Wait for it to finish or use /cancel.")
			return m, nil
		}
		return m, followUpCmd(m.startRequest(), m.deps.Submitter, question)

	case "/source":
		return m.handleSource(args)

	case "/clear":
		m.chatView.Clear()
		m.synced, m.lastID = 0, ""
		m.deps.Store.Dispatch(context.WithoutCancel(m.deps.Context), store.ClearMessages{})
		m.note(components.RoleSystem, theme.SymbolSuccess+" Conversation cleared.")
		return m, nil

	case "/cancel":
		if m.cancel != nil {
			m.cancelRequest()
		} else {
			m.note(components.RoleSystem, "No active request to cancel.")
		}
		return m, nil

	default:
		m.note(components.RoleSystem, fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
		return m, nil
	}
}

const helpText = `Available commands:
  /mode [literal|reasoning]  - Show or switch retrieval mode
  /upload <files...>         - Upload PDF/TXT documents
  /docs                      - List uploaded documents
  /rm <id>                   - Remove a document
  /doc <id>                  - Show a document and its chunks
  /stats                     - Show collection statistics
  /explain                   - Explain how the last answer was derived
  /followup <question>       - Ask about the last answer
  /source <n>                - Show citation n of the last answer
  /clear                     - Clear the conversation
  /cancel                    - Cancel the active request
  /help                      - Show this help
  /quit                      - Exit docchat

Keybindings:
  Enter      - Send
  Alt+Enter  - New line
  Ctrl+R     - Toggle retrieval mode
  Ctrl+P/N   - Previous/next input
  Ctrl+L     - Clear conversation
  Esc        - Scroll mode (j/k, g/G, i to return)
  Ctrl+C     - Cancel/Quit`

// handleSource opens the citations of the most recent answer that has any.
func (m ChatModel) handleSource(args []string) (tea.Model, tea.Cmd) {
	var sources []domain.CitationSource
	for i := len(m.state.Messages) - 1; i >= 0; i-- {
		if msg := m.state.Messages[i]; msg.Role == domain.RoleAssistant && len(msg.Sources) > 0 {
			sources = msg.Sources
			break
		}
	}
	if len(sources) == 0 {
		m.note(components.RoleSystem, "No citations to show yet.")
		return m, nil
	}

	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 || v > len(sources) {
			m.note(components.RoleSystem, fmt.Sprintf("Usage: /source <1-%d>", len(sources)))
			return m, nil
		}
		n = v
	}

	pages := make([]components.ModalPage, len(sources))
	for i, s := range sources {
		pages[i] = components.ModalPage{
			Title:   fmt.Sprintf("[%d] %s", i+1, sourceTitle(s)),
			Content: m.sourceDetail(s),
		}
	}
	m.modal.SetSize(m.width, m.height)
	m.modal.OpenPages(pages, n-1)
	return m, nil
}

func (m ChatModel) sourceDetail(s domain.CitationSource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document:  %s\n", s.DocumentID)
	fmt.Fprintf(&b, "Chunk:     %s\n", s.ChunkID)
	fmt.Fprintf(&b, "Location:  %s", m.deps.Catalog.Locality(s))
	if s.LineNumber != nil {
		fmt.Fprintf(&b, ", line %d", *s.LineNumber)
	}
	fmt.Fprintf(&b, "\nRelevance: %s\n\n", usecase.FormatRelevance(s.RelevanceScore))
	b.WriteString(s.Content)
	return b.String()
}

func (m ChatModel) handleUploadDone(msg UploadDoneMsg) (tea.Model, tea.Cmd) {
	if len(msg.Unreadable) > 0 {
		m.note(components.RoleError, "Could not read:\n"+strings.Join(msg.Unreadable, "\n"))
	}
	if len(msg.Report.Uploaded) > 0 {
		var b strings.Builder
		b.WriteString(m.deps.Catalog.Uploaded(len(msg.Report.Uploaded)))
		for _, d := range msg.Report.Uploaded {
			fmt.Fprintf(&b, "\n  %s  %s", d.ID, d.DisplayName())
		}
		m.note(components.RoleSystem, b.String())
	}
	if msg.Err != nil {
		if errors.Is(msg.Err, domain.ErrRequestInFlight) {
			m.note(components.RoleSystem, "A request is still running. Upload again once it finishes.")
		}
		m.deps.Logger.Warn("upload finished with errors", "error", msg.Err)
	}
	return m, nil
}

func (m ChatModel) handleDocsDone(msg DocsDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.deps.Logger.Warn("list documents failed", "error", msg.Err)
		return m, nil
	}
	// Init also lists documents; only report when there is something to say.
	if len(msg.Documents) == 0 {
		return m, nil
	}
	var b strings.Builder
	b.WriteString(m.deps.Catalog.Listed(len(msg.Documents)))
	for _, d := range msg.Documents {
		fmt.Fprintf(&b, "\n  %s %s  %s  %s, %d chunks",
			theme.SymbolDoc, d.ID, d.DisplayName(), d.Status, d.ChunkCount)
	}
	m.note(components.RoleSystem, b.String())
	return m, nil
}

// isSGRMouseSequence detects SGR mouse escape sequences that leak through
// as key input (e.g. "<65;38;21M") on some terminals.
func isSGRMouseSequence(s string) bool {
	if len(s) < 5 || s[0] != '<' {
		return false
	}
	last := s[len(s)-1]
	if last != 'M' && last != 'm' {
		return false
	}
	return digitsAndSemicolons(s[1 : len(s)-1])
}

// isMouseEscapeLeak covers the SGR, X11 and URXVT mouse formats.
func isMouseEscapeLeak(s string) bool {
	if isSGRMouseSequence(s) {
		return true
	}
	if len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm') {
		return true
	}
	return len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M' && digitsAndSemicolons(s[1:len(s)-1])
}

func digitsAndSemicolons(s string) bool {
	for _, r := range s {
		if r != ';' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
