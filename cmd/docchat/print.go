package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"docchat/internal/adapter/tui/uxerror"
	"docchat/internal/domain"
	"docchat/internal/usecase"
)

var (
	indexColor = color.New(color.FgYellow, color.Bold)
	titleColor = color.New(color.Bold)
	mutedColor = color.New(color.FgHiBlack)
	scoreColor = color.New(color.FgGreen)
)

// printMessage prints an assistant message followed by its citations.
func printMessage(cat *usecase.Catalog, msg domain.ConversationMessage) {
	fmt.Println(msg.Content)
	if len(msg.Sources) == 0 {
		return
	}
	fmt.Println()
	mutedColor.Println("Sources:")
	printSources(cat, msg.Sources, 0)
}

// printSources prints one line per source, plus a preview when previewChars > 0.
func printSources(cat *usecase.Catalog, sources []domain.CitationSource, previewChars int) {
	for i, s := range sources {
		title := s.DocumentTitle
		if title == "" {
			title = s.DocumentID
		}
		fmt.Printf("  %s %s %s %s\n",
			indexColor.Sprintf("[%d]", i+1),
			titleColor.Sprint(title),
			mutedColor.Sprintf("(%s)", cat.Locality(s)),
			scoreColor.Sprint(usecase.FormatRelevance(s.RelevanceScore)),
		)
		if previewChars > 0 {
			fmt.Printf("      %s\n", usecase.Preview(s.Content, previewChars))
		}
	}
}

func printDocuments(cat *usecase.Catalog, docs []domain.Document) {
	fmt.Println(cat.Listed(len(docs)))
	for _, d := range docs {
		fmt.Printf("  %s  %s  %s\n",
			mutedColor.Sprint(d.ID),
			titleColor.Sprint(d.DisplayName()),
			mutedColor.Sprintf("%s, %d chunks, %s", d.Status, d.ChunkCount, d.UploadedAt.Format("2006-01-02 15:04")),
		)
	}
}

// printDocument prints the document detail followed by one line per chunk.
func printDocument(w io.Writer, d domain.Document, chunks []domain.DocumentChunk, previewChars int) {
	titleColor.Fprintln(w, d.DisplayName())
	field := func(name, value string) {
		fmt.Fprintf(w, "  %s %s\n", mutedColor.Sprintf("%-10s", name+":"), value)
	}
	field("id", d.ID)
	field("file", d.Filename)
	field("type", d.Type)
	field("size", usecase.FormatBytes(d.Size))
	field("status", d.Status)
	field("uploaded", d.UploadedAt.Format("2006-01-02 15:04"))
	if d.ProcessedAt != nil {
		field("processed", d.ProcessedAt.Format("2006-01-02 15:04"))
	}
	field("chunks", fmt.Sprint(d.ChunkCount))
	if len(chunks) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, c := range chunks {
		loc := "no page"
		if c.PageNumber != nil {
			loc = fmt.Sprintf("page %d", *c.PageNumber)
		}
		if !c.HasEmbedding {
			loc += ", not embedded"
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			indexColor.Sprintf("[%d]", c.Index+1),
			mutedColor.Sprintf("(%s)", loc),
			usecase.Preview(c.Content, previewChars),
		)
	}
}

// printStats prints collection statistics. Derived stats have no embedding
// or index figures.
func printStats(w io.Writer, st *domain.DocumentStats) {
	field := func(name, value string) {
		fmt.Fprintf(w, "%s %s\n", titleColor.Sprintf("%-11s", name+":"), value)
	}
	field("Documents", fmt.Sprintf("%d (%s, avg %s)",
		st.Total, usecase.FormatBytes(st.TotalSizeBytes), usecase.FormatBytes(int64(st.AvgSizeBytes))))
	field("By status", usecase.FormatCounts(st.ByStatus))
	field("By type", usecase.FormatCounts(st.ByType))
	if st.Derived {
		field("Chunks", fmt.Sprint(st.TotalChunks))
		mutedColor.Fprintln(w, "Computed from the document list; the backend reports no stats.")
		return
	}
	field("Chunks", fmt.Sprintf("%d (%d embedded)", st.TotalChunks, st.ChunksWithEmbeddings))
	field("Index", st.IndexHealth)
}

func printSuccess(msg string) {
	if msg == "" {
		return
	}
	color.Green("✓ %s", msg)
}

func printFailure(msg string) {
	color.Red("✗ %s", msg)
}

// printError reports a command failure with recovery hints on stderr.
func printError(cmd string, err error) {
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fe := uxerror.Humanize(err)
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(os.Stderr, "%s: %s\n", cmd, fe.Title)
	if fe.Message != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", fe.Message)
	}
	for _, h := range fe.Hints {
		mutedColor.Fprintf(os.Stderr, "  - %s\n", h)
	}
	if fe.Code != "" && fe.Code != domain.CodeUnknown {
		mutedColor.Fprintf(os.Stderr, "  [%s]\n", fe.Code)
	}
}
