package store

import "docchat/internal/domain"

// Action is one named state transition. The set is closed: only the types in
// this file implement it.
type Action interface {
	Name() string
	isAction()
}

// SetLoading toggles the in-flight flag.
type SetLoading struct{ Loading bool }

// SetError replaces the current error. A nil Err clears it.
type SetError struct{ Err *domain.StateError }

// SetSuccess replaces the transient success message and always clears the
// error. "" clears the message too.
type SetSuccess struct{ Message string }

// SetDocuments replaces the whole document collection.
type SetDocuments struct{ Documents []domain.Document }

// AddDocument inserts a document or replaces the one with the same id.
type AddDocument struct{ Document domain.Document }

// RemoveDocument drops the document with the given id, if present.
type RemoveDocument struct{ ID string }

// AddMessage appends a message to the conversation log.
type AddMessage struct{ Message domain.ConversationMessage }

// SetMessages replaces the conversation log.
type SetMessages struct{ Messages []domain.ConversationMessage }

// SetSession assigns the conversation token.
type SetSession struct{ SessionID string }

// ClearMessages empties the conversation log. The session is kept.
type ClearMessages struct{}

func (SetLoading) Name() string     { return "SetLoading" }
func (SetError) Name() string       { return "SetError" }
func (SetSuccess) Name() string     { return "SetSuccess" }
func (SetDocuments) Name() string   { return "SetDocuments" }
func (AddDocument) Name() string    { return "AddDocument" }
func (RemoveDocument) Name() string { return "RemoveDocument" }
func (AddMessage) Name() string     { return "AddMessage" }
func (SetMessages) Name() string    { return "SetMessages" }
func (SetSession) Name() string     { return "SetSession" }
func (ClearMessages) Name() string  { return "ClearMessages" }

func (SetLoading) isAction()     {}
func (SetError) isAction()       {}
func (SetSuccess) isAction()     {}
func (SetDocuments) isAction()   {}
func (AddDocument) isAction()    {}
func (RemoveDocument) isAction() {}
func (AddMessage) isAction()     {}
func (SetMessages) isAction()    {}
func (SetSession) isAction()     {}
func (ClearMessages) isAction()  {}
