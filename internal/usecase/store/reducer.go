package store

import (
	"slices"

	"docchat/internal/domain"
)

// State is the conversation aggregate. Values returned by Reduce never share
// backing arrays with the state they were derived from, so a snapshot stays
// valid after later dispatches.
type State struct {
	Messages  []domain.ConversationMessage
	Documents []domain.Document // unique by ID, insertion ordered
	IsLoading bool
	Error     *domain.StateError
	Success   string
	SessionID string
	Revision  uint64 // bumped on every applied action
}

// Initial returns the state of a fresh conversation.
func Initial(sessionID string) State {
	return State{SessionID: sessionID}
}

// Reduce applies one action. It performs no I/O and reads no clock;
// timestamps travel inside the actions.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.IsLoading = a.Loading
	case SetError:
		s.Error = copyError(a.Err)
		if a.Err != nil {
			s.IsLoading = false
		}
	case SetSuccess:
		s.Success = a.Message
		s.Error = nil
	case SetDocuments:
		s.Documents = dedupeDocuments(a.Documents)
	case AddDocument:
		s.Documents = upsertDocument(s.Documents, a.Document)
	case RemoveDocument:
		i := indexDocument(s.Documents, a.ID)
		if i < 0 {
			return s
		}
		s.Documents = slices.Delete(slices.Clone(s.Documents), i, i+1)
	case AddMessage:
		msgs := make([]domain.ConversationMessage, len(s.Messages), len(s.Messages)+1)
		copy(msgs, s.Messages)
		s.Messages = append(msgs, copyMessage(a.Message))
	case SetMessages:
		msgs := make([]domain.ConversationMessage, len(a.Messages))
		for i, m := range a.Messages {
			msgs[i] = copyMessage(m)
		}
		s.Messages = msgs
	case SetSession:
		s.SessionID = a.SessionID
	case ClearMessages:
		s.Messages = nil
	default:
		return s
	}
	s.Revision++
	return s
}

// ReduceAll folds actions over s in order.
func ReduceAll(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

// Document returns the document with the given id.
func (s State) Document(id string) (domain.Document, bool) {
	i := indexDocument(s.Documents, id)
	if i < 0 {
		return domain.Document{}, false
	}
	return s.Documents[i], true
}

// LastMessage returns the tail of the conversation log.
func (s State) LastMessage() (domain.ConversationMessage, bool) {
	if len(s.Messages) == 0 {
		return domain.ConversationMessage{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

func indexDocument(docs []domain.Document, id string) int {
	return slices.IndexFunc(docs, func(d domain.Document) bool { return d.ID == id })
}

func upsertDocument(docs []domain.Document, d domain.Document) []domain.Document {
	out := slices.Clone(docs)
	if i := indexDocument(out, d.ID); i >= 0 {
		out[i] = d
		return out
	}
	return append(out, d)
}

// dedupeDocuments keeps the first position of every id and the last value seen for it.
func dedupeDocuments(in []domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(in))
	pos := make(map[string]int, len(in))
	for _, d := range in {
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}

func copyMessage(m domain.ConversationMessage) domain.ConversationMessage {
	m.Sources = slices.Clone(m.Sources)
	return m
}

func copyError(e *domain.StateError) *domain.StateError {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
