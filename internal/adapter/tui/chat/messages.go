// Package chat implements the interactive conversation screen of docchat.
package chat

import (
	"docchat/internal/domain"
	"docchat/internal/usecase"
	"docchat/internal/usecase/store"
)

// StateMsg carries a store snapshot into the update loop.
type StateMsg struct {
	State store.State
}

// SubmitDoneMsg signals that Submit returned. Message is zero when the
// submission was rejected before anything was dispatched.
type SubmitDoneMsg struct {
	Message domain.ConversationMessage
	Err     error
}

// UploadDoneMsg signals that an upload finished. Unreadable lists the paths
// that could not be read locally.
type UploadDoneMsg struct {
	Report     usecase.UploadReport
	Unreadable []string
	Err        error
}

// DocsDoneMsg carries the result of a document listing.
type DocsDoneMsg struct {
	Documents []domain.Document
	Err       error
}

// RemoveDoneMsg signals that a document removal finished.
type RemoveDoneMsg struct {
	ID  string
	Err error
}

// DocDoneMsg carries a document and its chunks. Document is set and Err is
// non-nil when only the chunk listing failed.
type DocDoneMsg struct {
	ID       string
	Document *domain.Document
	Chunks   []domain.DocumentChunk
	Err      error
}

// StatsDoneMsg carries collection statistics.
type StatsDoneMsg struct {
	Stats *domain.DocumentStats
	Err   error
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
