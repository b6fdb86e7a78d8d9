package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
	"docchat/internal/usecase/store"
)

type fakeExplainer struct {
	explanation *domain.Explanation
	answer      *domain.Answer
	err         error
	explained   []domain.Turn
	followUps   []string
	previous    []domain.Turn
}

func (f *fakeExplainer) Explain(_ context.Context, turn domain.Turn) (*domain.Explanation, error) {
	f.explained = append(f.explained, turn)
	return f.explanation, f.err
}

func (f *fakeExplainer) FollowUp(_ context.Context, question string, previous domain.Turn) (*domain.Answer, error) {
	f.followUps = append(f.followUps, question)
	f.previous = append(f.previous, previous)
	return f.answer, f.err
}

func newExplainingOrchestrator(a *fakeAnswerer, e *fakeExplainer) (*Orchestrator, *store.Store) {
	st := store.New("session-1")
	o := NewOrchestrator(OrchestratorDeps{
		Store:     st,
		Searcher:  &fakeSearcher{},
		Answerer:  a,
		Explainer: e,
		Logger:    newTestLogger(),
		Clock:     func() time.Time { return fixedNow },
	})
	return o, st
}

// answered runs one reasoning turn so there is something to explain.
func answered(t *testing.T, o *Orchestrator) {
	t.Helper()
	_, err := o.Submit(context.Background(), "What is the refund window?", domain.ModeReasoningQA)
	require.NoError(t, err)
}

var refundAnswer = &domain.Answer{
	Text:    "Thirty days.",
	Sources: []domain.CitationSource{{DocumentID: "d1", ChunkID: "c1", Content: "30 days", RelevanceScore: 0.9}},
}

func TestLastTurn(t *testing.T) {
	msgs := []domain.ConversationMessage{
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
		{Role: domain.RoleUser, Content: "q2"},
	}
	turn, ok := LastTurn(msgs)
	require.True(t, ok)
	assert.Equal(t, "q1", turn.Question)
	assert.Equal(t, "a1", turn.Answer)

	_, ok = LastTurn(msgs[:1])
	assert.False(t, ok)
	_, ok = LastTurn(nil)
	assert.False(t, ok)
}

func TestExplainLatestAnswer(t *testing.T) {
	e := &fakeExplainer{explanation: &domain.Explanation{Text: "Taken from section 4.", SourcesAnalyzed: 1}}
	o, st := newExplainingOrchestrator(&fakeAnswerer{answer: refundAnswer}, e)
	answered(t, o)

	msg, err := o.Explain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NewCatalog("en").Explanation("Taken from section 4.", 1), msg.Content)
	assert.Len(t, msg.Sources, 1)

	require.Len(t, e.explained, 1)
	assert.Equal(t, "What is the refund window?", e.explained[0].Question)
	assert.Equal(t, "Thirty days.", e.explained[0].Answer)
	assert.Equal(t, "d1", e.explained[0].Sources[0].DocumentID)

	s := st.State()
	require.Len(t, s.Messages, 4)
	assert.Equal(t, NewCatalog("en").ExplainRequest(), s.Messages[2].Content)
	assert.False(t, s.IsLoading)
}

func TestExplainWithoutAnswerIsRejected(t *testing.T) {
	o, st := newExplainingOrchestrator(&fakeAnswerer{}, &fakeExplainer{})

	_, err := o.Explain(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, uint64(0), st.State().Revision)
}

func TestExplainFailureIsLLMError(t *testing.T) {
	e := &fakeExplainer{err: errors.New("model offline")}
	o, st := newExplainingOrchestrator(&fakeAnswerer{answer: refundAnswer}, e)
	answered(t, o)

	msg, err := o.Explain(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.RoleAssistant, msg.Role)

	s := st.State()
	assert.Len(t, assistantMessages(s), 2)
	require.NotNil(t, s.Error)
	assert.Equal(t, domain.CodeLLMError, s.Error.Code)
	assert.Equal(t, "model offline", s.Error.Message)
	assert.False(t, s.IsLoading)
}

func TestFollowUpCarriesPreviousTurn(t *testing.T) {
	e := &fakeExplainer{answer: &domain.Answer{Text: "Sale items are final."}}
	a := &fakeAnswerer{answer: refundAnswer}
	o, st := newExplainingOrchestrator(a, e)
	answered(t, o)

	msg, err := o.FollowUp(context.Background(), "  And for sale items? ")
	require.NoError(t, err)
	assert.Equal(t, "Sale items are final.", msg.Content)

	assert.Equal(t, []string{"And for sale items?"}, e.followUps)
	assert.Equal(t, "Thirty days.", e.previous[0].Answer)
	assert.Len(t, a.sessions, 1, "follow-up must not go through ask")

	s := st.State()
	require.Len(t, s.Messages, 4)
	assert.Equal(t, "And for sale items?", s.Messages[2].Content)
}

func TestFollowUpWithoutHistoryAsks(t *testing.T) {
	e := &fakeExplainer{}
	a := &fakeAnswerer{answer: &domain.Answer{Text: "Hello."}}
	o, _ := newExplainingOrchestrator(a, e)

	msg, err := o.FollowUp(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello.", msg.Content)
	assert.Empty(t, e.followUps)
	assert.Equal(t, []string{"session-1"}, a.sessions)
}

func TestFollowUpPreconditions(t *testing.T) {
	o, st := newExplainingOrchestrator(&fakeAnswerer{}, &fakeExplainer{})
	_, err := o.FollowUp(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrEmptyUtterance)

	bare, bareStore := newTestOrchestrator(&fakeSearcher{}, &fakeAnswerer{})
	_, err = bare.FollowUp(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = bare.Explain(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, uint64(0), st.State().Revision)
	assert.Equal(t, uint64(0), bareStore.State().Revision)
}

func TestExplainRefusedWhileLoading(t *testing.T) {
	e := &fakeExplainer{explanation: &domain.Explanation{Text: "x"}}
	o, st := newExplainingOrchestrator(&fakeAnswerer{answer: refundAnswer}, e)
	answered(t, o)
	st.Dispatch(context.Background(), store.SetLoading{Loading: true})

	_, err := o.Explain(context.Background())
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)
	assert.Empty(t, e.explained)
	assert.Len(t, st.State().Messages, 2)
}
