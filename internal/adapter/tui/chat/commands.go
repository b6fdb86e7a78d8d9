package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/domain"
	"docchat/internal/usecase"
)

// Submitter runs conversational turns.
type Submitter interface {
	Submit(ctx context.Context, utterance string, mode domain.RequestMode) (domain.ConversationMessage, error)
	Explain(ctx context.Context) (domain.ConversationMessage, error)
	FollowUp(ctx context.Context, question string) (domain.ConversationMessage, error)
}

// Documents manages the document collection.
type Documents interface {
	ReadFiles(paths []string) ([]domain.UploadFile, []string)
	Upload(ctx context.Context, files []domain.UploadFile) (usecase.UploadReport, error)
	Refresh(ctx context.Context, offset, limit int) ([]domain.Document, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Document, error)
	Chunks(ctx context.Context, id string) ([]domain.DocumentChunk, error)
	Stats(ctx context.Context) (*domain.DocumentStats, error)
}

// submitCmd runs Submit off the update loop. The store snapshots it produces
// arrive separately as StateMsg.
func submitCmd(ctx context.Context, s Submitter, text string, mode domain.RequestMode) tea.Cmd {
	return func() tea.Msg {
		msg, err := s.Submit(ctx, text, mode)
		return SubmitDoneMsg{Message: msg, Err: err}
	}
}

func explainCmd(ctx context.Context, s Submitter) tea.Cmd {
	return func() tea.Msg {
		msg, err := s.Explain(ctx)
		return SubmitDoneMsg{Message: msg, Err: err}
	}
}

func followUpCmd(ctx context.Context, s Submitter, question string) tea.Cmd {
	return func() tea.Msg {
		msg, err := s.FollowUp(ctx, question)
		return SubmitDoneMsg{Message: msg, Err: err}
	}
}

func uploadCmd(ctx context.Context, docs Documents, paths []string) tea.Cmd {
	return func() tea.Msg {
		files, unreadable := docs.ReadFiles(paths)
		if len(files) == 0 {
			return UploadDoneMsg{Unreadable: unreadable}
		}
		rep, err := docs.Upload(ctx, files)
		return UploadDoneMsg{Report: rep, Unreadable: unreadable, Err: err}
	}
}

func refreshCmd(ctx context.Context, docs Documents, limit int) tea.Cmd {
	return func() tea.Msg {
		list, err := docs.Refresh(ctx, 0, limit)
		return DocsDoneMsg{Documents: list, Err: err}
	}
}

func removeCmd(ctx context.Context, docs Documents, id string) tea.Cmd {
	return func() tea.Msg {
		return RemoveDoneMsg{ID: id, Err: docs.Remove(ctx, id)}
	}
}

// docCmd fetches a document and its chunks. Chunks are skipped when the
// document lookup fails.
func docCmd(ctx context.Context, docs Documents, id string) tea.Cmd {
	return func() tea.Msg {
		d, err := docs.Get(ctx, id)
		if err != nil {
			return DocDoneMsg{ID: id, Err: err}
		}
		chunks, err := docs.Chunks(ctx, id)
		return DocDoneMsg{ID: id, Document: d, Chunks: chunks, Err: err}
	}
}

func statsCmd(ctx context.Context, docs Documents) tea.Cmd {
	return func() tea.Msg {
		st, err := docs.Stats(ctx)
		return StatsDoneMsg{Stats: st, Err: err}
	}
}
