package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
	"docchat/internal/usecase/eventbus"
	"docchat/internal/usecase/store"
)

// --- Fakes ---

type fakeSearcher struct {
	mu      sync.Mutex
	result  *domain.SearchResult
	err     error
	panicV  any
	gate    chan struct{} // when set, Search blocks until closed or ctx is done
	queries []domain.SearchQuery
}

func (f *fakeSearcher) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.result, f.err
}

type fakeAnswerer struct {
	mu       sync.Mutex
	answer   *domain.Answer
	err      error
	panicV   any
	waitCtx  bool
	started  chan struct{}
	sessions []string
}

func (f *fakeAnswerer) Ask(ctx context.Context, question, sessionID string) (*domain.Answer, error) {
	f.mu.Lock()
	f.sessions = append(f.sessions, sessionID)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.answer, f.err
}

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newTestOrchestrator(s *fakeSearcher, a *fakeAnswerer) (*Orchestrator, *store.Store) {
	st := store.New("session-1")
	o := NewOrchestrator(OrchestratorDeps{
		Store:    st,
		Searcher: s,
		Answerer: a,
		Logger:   newTestLogger(),
		Clock:    func() time.Time { return fixedNow },
	})
	return o, st
}

func hit(doc, title string, page *int, sim float64, content string) domain.SearchHit {
	return domain.SearchHit{
		Chunk:      domain.HitChunk{ID: doc + "-c", Content: content, Metadata: domain.ChunkMetadata{PageNumber: page}},
		Document:   domain.HitDocument{ID: doc, Title: title},
		Similarity: sim,
	}
}

func assistantMessages(s store.State) []domain.ConversationMessage {
	var out []domain.ConversationMessage
	for _, m := range s.Messages {
		if m.Role == domain.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

// --- Literal search ---

func TestSubmitLiteralNoResults(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{result: &domain.SearchResult{}}, &fakeAnswerer{})

	msg, err := o.Submit(context.Background(), "budget", domain.ModeLiteralSearch)
	require.NoError(t, err)

	s := st.State()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, domain.RoleUser, s.Messages[0].Role)
	assert.Equal(t, "budget", s.Messages[0].Content)
	assert.Equal(t, NewCatalog("en").NoResults("budget"), s.Messages[1].Content)
	assert.Empty(t, s.Messages[1].Sources)
	assert.Equal(t, msg, s.Messages[1])
	assert.False(t, s.IsLoading)
	assert.Nil(t, s.Error)
}

func TestSubmitLiteralFormatsRelevanceInBackendOrder(t *testing.T) {
	page := 3
	s := &fakeSearcher{result: &domain.SearchResult{Hits: []domain.SearchHit{
		hit("d1", "Annual Report", &page, 0.955, "Revenue grew."),
		hit("d2", "Minutes", nil, 0.4021, "Meeting notes."),
	}}}
	o, st := newTestOrchestrator(s, &fakeAnswerer{})

	_, err := o.Submit(context.Background(), "revenue", domain.ModeLiteralSearch)
	require.NoError(t, err)

	last, ok := st.State().LastMessage()
	require.True(t, ok)
	first := strings.Index(last.Content, "95.5%")
	second := strings.Index(last.Content, "40.2%")
	require.GreaterOrEqual(t, first, 0, last.Content)
	require.GreaterOrEqual(t, second, 0, last.Content)
	assert.Less(t, first, second)
	assert.Contains(t, last.Content, "Annual Report")
	assert.Contains(t, last.Content, "page 3")
	assert.Contains(t, last.Content, "no page")

	require.Len(t, last.Sources, 2)
	assert.Equal(t, "d1", last.Sources[0].DocumentID)
	assert.Equal(t, "d2", last.Sources[1].DocumentID)
}

func TestSubmitLiteralUsesModeDefaults(t *testing.T) {
	s := &fakeSearcher{result: &domain.SearchResult{}}
	o, _ := newTestOrchestrator(s, &fakeAnswerer{})

	_, err := o.Submit(context.Background(), "  invoices  ", domain.ModeLiteralSearch)
	require.NoError(t, err)

	require.Len(t, s.queries, 1)
	assert.Equal(t, domain.SearchQuery{Query: "invoices", Limit: 5, Threshold: 0.3}, s.queries[0])
}

func TestSubmitLiteralTruncatesPreview(t *testing.T) {
	long := strings.Repeat("a", 250)
	s := &fakeSearcher{result: &domain.SearchResult{Hits: []domain.SearchHit{hit("d1", "Doc", nil, 0.5, long)}}}
	o, st := newTestOrchestrator(s, &fakeAnswerer{})

	_, err := o.Submit(context.Background(), "a", domain.ModeLiteralSearch)
	require.NoError(t, err)

	last, _ := st.State().LastMessage()
	assert.Contains(t, last.Content, strings.Repeat("a", 200)+"...")
	assert.NotContains(t, last.Content, strings.Repeat("a", 201))
	assert.Equal(t, long, last.Sources[0].Content, "stored source keeps full content")
}

func TestSubmitLiteralDropsMalformedHits(t *testing.T) {
	s := &fakeSearcher{result: &domain.SearchResult{Hits: []domain.SearchHit{
		{Chunk: domain.HitChunk{Content: "orphan"}, Similarity: 0.9},
		hit("d1", "Doc", nil, 0.8, "kept"),
	}}}
	o, st := newTestOrchestrator(s, &fakeAnswerer{})

	_, err := o.Submit(context.Background(), "q", domain.ModeLiteralSearch)
	require.NoError(t, err)
	last, _ := st.State().LastMessage()
	require.Len(t, last.Sources, 1)
	assert.Equal(t, "d1", last.Sources[0].DocumentID)
}

func TestSubmitLiteralFailure(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{err: errors.New("index offline")}, &fakeAnswerer{})

	msg, err := o.Submit(context.Background(), "budget", domain.ModeLiteralSearch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSearchFailed))

	s := st.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, domain.CodeSearchError, s.Error.Code)
	assert.Equal(t, "index offline", s.Error.Message)
	assert.Equal(t, fixedNow, s.Error.Timestamp)
	assert.False(t, s.IsLoading)
	assert.Contains(t, msg.Content, "index offline")
	assert.Empty(t, msg.Sources)
}

// --- Reasoning QA ---

func TestSubmitReasoningUsesAnswerVerbatim(t *testing.T) {
	a := &fakeAnswerer{answer: &domain.Answer{
		Text: "The budget is **$2M**.",
		Sources: []domain.CitationSource{
			{DocumentID: "d1", DocumentTitle: "Budget", ChunkID: "c1", RelevanceScore: 1.7},
			{DocumentID: "d2", ChunkID: "c2", RelevanceScore: -0.2},
		},
		SessionID: "session-1",
	}}
	o, st := newTestOrchestrator(&fakeSearcher{}, a)

	_, err := o.Submit(context.Background(), "What is the budget?", domain.ModeReasoningQA)
	require.NoError(t, err)

	assert.Equal(t, []string{"session-1"}, a.sessions)
	last, _ := st.State().LastMessage()
	assert.Equal(t, "The budget is **$2M**.", last.Content)
	require.Len(t, last.Sources, 2)
	assert.Equal(t, 1.0, last.Sources[0].RelevanceScore)
	assert.Equal(t, 0.0, last.Sources[1].RelevanceScore)
}

func TestSubmitReasoningTimeout(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{}, &fakeAnswerer{err: errors.New("timeout")})

	_, err := o.Submit(context.Background(), "why?", domain.ModeReasoningQA)
	require.Error(t, err)
	assert.Equal(t, domain.CodeLLMError, domain.ErrorCodeOf(err))

	s := st.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, domain.CodeLLMError, s.Error.Code)
	assert.Contains(t, s.Error.Message, "timeout")
	assert.False(t, s.IsLoading)
	last, _ := s.LastMessage()
	assert.Contains(t, last.Content, "timeout")
}

func TestSubmitReasoningNilAnswer(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{}, &fakeAnswerer{})
	_, err := o.Submit(context.Background(), "q", domain.ModeReasoningQA)
	require.Error(t, err)
	assert.Equal(t, domain.CodeLLMError, st.State().Error.Code)
}

// --- Terminal guarantee ---

func TestSubmitExactlyOneTerminalMessage(t *testing.T) {
	cases := []struct {
		name string
		mode domain.RequestMode
		s    *fakeSearcher
		a    *fakeAnswerer
	}{
		{"literal ok", domain.ModeLiteralSearch, &fakeSearcher{result: &domain.SearchResult{}}, &fakeAnswerer{}},
		{"literal error", domain.ModeLiteralSearch, &fakeSearcher{err: errors.New("x")}, &fakeAnswerer{}},
		{"literal panic", domain.ModeLiteralSearch, &fakeSearcher{panicV: "kaboom"}, &fakeAnswerer{}},
		{"qa ok", domain.ModeReasoningQA, &fakeSearcher{}, &fakeAnswerer{answer: &domain.Answer{Text: "hi"}}},
		{"qa error", domain.ModeReasoningQA, &fakeSearcher{}, &fakeAnswerer{err: errors.New("x")}},
		{"qa panic", domain.ModeReasoningQA, &fakeSearcher{}, &fakeAnswerer{panicV: errors.New("nil map")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, st := newTestOrchestrator(tc.s, tc.a)
			_, _ = o.Submit(context.Background(), "question", tc.mode)

			s := st.State()
			assert.Len(t, assistantMessages(s), 1)
			assert.False(t, s.IsLoading)
			assert.False(t, o.Busy())
		})
	}
}

func TestSubmitClearsPreviousError(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{result: &domain.SearchResult{}}, &fakeAnswerer{})
	st.Dispatch(context.Background(), store.SetError{Err: domain.NewStateError(domain.CodeUploadError, "old", fixedNow)})

	_, err := o.Submit(context.Background(), "q", domain.ModeLiteralSearch)
	require.NoError(t, err)
	assert.Nil(t, st.State().Error)
}

// --- Preconditions ---

func TestSubmitRejectsEmptyUtterance(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{}, &fakeAnswerer{})
	for _, u := range []string{"", "   ", "\n\t"} {
		_, err := o.Submit(context.Background(), u, domain.ModeReasoningQA)
		assert.True(t, errors.Is(err, domain.ErrEmptyUtterance))
	}
	assert.Equal(t, uint64(0), st.State().Revision)
}

func TestSubmitRejectsUnknownMode(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{}, &fakeAnswerer{})
	_, err := o.Submit(context.Background(), "q", domain.RequestMode("fuzzy"))
	assert.True(t, errors.Is(err, domain.ErrInvalidMode))
	assert.Empty(t, st.State().Messages)
}

func TestSubmitRejectsWhileInFlight(t *testing.T) {
	s := &fakeSearcher{result: &domain.SearchResult{}, gate: make(chan struct{})}
	o, st := newTestOrchestrator(s, &fakeAnswerer{})

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background(), "first", domain.ModeLiteralSearch)
		done <- err
	}()
	require.Eventually(t, o.Busy, time.Second, 5*time.Millisecond)

	_, err := o.Submit(context.Background(), "second", domain.ModeReasoningQA)
	assert.True(t, errors.Is(err, domain.ErrRequestInFlight))

	close(s.gate)
	require.NoError(t, <-done)

	s2 := st.State()
	require.Len(t, s2.Messages, 2)
	assert.Equal(t, "first", s2.Messages[0].Content)
	assert.False(t, s2.IsLoading)
}

func TestSubmitRejectsWhileStoreLoading(t *testing.T) {
	o, st := newTestOrchestrator(&fakeSearcher{}, &fakeAnswerer{})
	st.Dispatch(context.Background(), store.SetLoading{Loading: true})

	_, err := o.Submit(context.Background(), "q", domain.ModeLiteralSearch)
	assert.True(t, errors.Is(err, domain.ErrRequestInFlight))
	assert.Empty(t, st.State().Messages)
	assert.False(t, o.Busy())
}

// --- Cancellation ---

func TestSubmitCancelledTakesFailurePath(t *testing.T) {
	a := &fakeAnswerer{waitCtx: true, started: make(chan struct{})}
	o, st := newTestOrchestrator(&fakeSearcher{}, a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, "long question", domain.ModeReasoningQA)
		done <- err
	}()
	<-a.started
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
	s := st.State()
	require.NotNil(t, s.Error)
	assert.Equal(t, domain.CodeLLMError, s.Error.Code)
	assert.False(t, s.IsLoading)
	assert.Len(t, assistantMessages(s), 1)
}

// --- Events ---

func TestSubmitPublishesSettledEvent(t *testing.T) {
	bus := eventbus.New(newTestLogger())
	st := store.New("session-1")
	o := NewOrchestrator(OrchestratorDeps{
		Store:    st,
		Searcher: &fakeSearcher{err: errors.New("down")},
		Answerer: &fakeAnswerer{},
		Bus:      bus,
		Logger:   newTestLogger(),
	})

	var mu sync.Mutex
	var got []domain.RequestSettledPayload
	bus.Subscribe(domain.EventRequestSettled, func(_ context.Context, e domain.Event) {
		var p domain.RequestSettledPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		}
	})

	_, _ = o.Submit(context.Background(), "q", domain.ModeLiteralSearch)
	bus.Close()

	require.Len(t, got, 1)
	assert.Equal(t, "failure", got[0].Outcome)
	assert.Equal(t, domain.CodeSearchError, got[0].Code)
	assert.Equal(t, domain.ModeLiteralSearch, got[0].Mode)
}

func TestNewOrchestratorDefaults(t *testing.T) {
	o := NewOrchestrator(OrchestratorDeps{Store: store.New("s"), Config: RetrievalConfig{LiteralThreshold: 5}})
	assert.Equal(t, DefaultRetrievalConfig(), o.deps.Config)
	assert.Equal(t, "en", o.deps.Catalog.Locale())
}
