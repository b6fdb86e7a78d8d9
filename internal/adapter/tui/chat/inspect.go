package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/adapter/tui/components"
	"docchat/internal/adapter/tui/uxerror"
	"docchat/internal/domain"
	"docchat/internal/usecase"
)

const timeLayout = "2006-01-02 15:04"

// handleDocDone opens the document in the modal: the detail page first,
// then one page per chunk.
func (m ChatModel) handleDocDone(msg DocDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Document == nil {
		err := msg.Err
		if err == nil {
			err = domain.NewDomainError("chat.doc", domain.ErrNotFound, msg.ID)
		}
		m.note(components.RoleError, uxerror.Humanize(err).Render())
		return m, nil
	}

	detail := documentDetail(*msg.Document, msg.Chunks)
	if msg.Err != nil {
		m.deps.Logger.Warn("list chunks failed", "document", msg.ID, "error", msg.Err)
		detail += "\n\nChunks unavailable: " + uxerror.Humanize(msg.Err).Title
	}
	pages := []components.ModalPage{{Title: msg.Document.DisplayName(), Content: detail}}
	for _, c := range msg.Chunks {
		pages = append(pages, components.ModalPage{
			Title:   fmt.Sprintf("%s #%d", msg.Document.DisplayName(), c.Index+1),
			Content: chunkDetail(c),
		})
	}
	m.modal.SetSize(m.width, m.height)
	m.modal.OpenPages(pages, 0)
	return m, nil
}

func documentDetail(d domain.Document, chunks []domain.DocumentChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:        %s\n", d.ID)
	fmt.Fprintf(&b, "File:      %s\n", d.Filename)
	fmt.Fprintf(&b, "Type:      %s\n", d.Type)
	fmt.Fprintf(&b, "Size:      %s\n", usecase.FormatBytes(d.Size))
	fmt.Fprintf(&b, "Status:    %s\n", d.Status)
	fmt.Fprintf(&b, "Uploaded:  %s\n", d.UploadedAt.Format(timeLayout))
	if d.ProcessedAt != nil {
		fmt.Fprintf(&b, "Processed: %s\n", d.ProcessedAt.Format(timeLayout))
	}
	fmt.Fprintf(&b, "Chunks:    %d", d.ChunkCount)
	if len(chunks) > 0 {
		b.WriteString("  (h/l to page through them)")
	}
	return b.String()
}

func chunkDetail(c domain.DocumentChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chunk:     %s\n", c.ID)
	if c.PageNumber != nil {
		fmt.Fprintf(&b, "Page:      %d\n", *c.PageNumber)
	}
	embedded := "no"
	if c.HasEmbedding {
		embedded = "yes"
	}
	fmt.Fprintf(&b, "Embedded:  %s\n\n", embedded)
	b.WriteString(c.Content)
	return b.String()
}

func statsSummary(st *domain.DocumentStats) string {
	if st == nil {
		return "No statistics available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Documents: %d (%s, avg %s)\n",
		st.Total, usecase.FormatBytes(st.TotalSizeBytes), usecase.FormatBytes(int64(st.AvgSizeBytes)))
	fmt.Fprintf(&b, "By status: %s\n", usecase.FormatCounts(st.ByStatus))
	fmt.Fprintf(&b, "By type:   %s\n", usecase.FormatCounts(st.ByType))
	if st.Derived {
		fmt.Fprintf(&b, "Chunks:    %d\n(computed from the document list)", st.TotalChunks)
		return b.String()
	}
	fmt.Fprintf(&b, "Chunks:    %d (%d embedded), index %s", st.TotalChunks, st.ChunksWithEmbeddings, st.IndexHealth)
	return b.String()
}
