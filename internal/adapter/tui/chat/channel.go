package chat

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/usecase/store"
)

// App runs the chat model as a full-screen Bubble Tea program fed by store
// snapshots.
type App struct {
	deps    ChatModelDeps
	logger  *slog.Logger
	program *tea.Program
	opts    []tea.ProgramOption
}

// NewApp creates the chat application. opts are appended to the default
// program options (alt screen, mouse cell motion).
func NewApp(deps ChatModelDeps, opts ...tea.ProgramOption) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{deps: deps, logger: logger, opts: opts}
}

// Run blocks until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.deps.Context = ctx
	model := NewChatModel(a.deps)

	opts := append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}, a.opts...)
	a.program = tea.NewProgram(model, opts...)

	// Observers run synchronously inside Dispatch, which the update loop
	// itself calls for /clear, so snapshots are handed over through a
	// one-slot mailbox that keeps only the newest state.
	mailbox := make(chan store.State, 1)
	unsubscribe := a.deps.Store.Subscribe(func(st store.State) {
		select {
		case <-mailbox:
		default:
		}
		mailbox <- st
	})
	defer unsubscribe()

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go func() {
		for {
			select {
			case <-pumpCtx.Done():
				return
			case st := <-mailbox:
				a.program.Send(StateMsg{State: st})
			}
		}
	}()

	go func() {
		<-ctx.Done()
		a.program.Send(QuitMsg{})
	}()

	a.logger.Info("chat started", "session", a.deps.Store.SessionID(), "mode", model.Mode())
	_, err := a.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	return err
}

// Stop asks the program to quit.
func (a *App) Stop() {
	if a.program != nil {
		a.program.Send(QuitMsg{})
	}
}
