package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"docchat/internal/domain"
	"docchat/internal/infra/tracer"
	"docchat/internal/usecase/store"
)

// RetrievalConfig holds the literal-search defaults. They are separate from
// the threshold used by plain document search.
type RetrievalConfig struct {
	LiteralLimit     int
	LiteralThreshold float64
	PreviewChars     int
}

// DefaultRetrievalConfig returns limit 5, threshold 0.3 and 200-character previews.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{LiteralLimit: 5, LiteralThreshold: 0.3, PreviewChars: 200}
}

// OrchestratorDeps holds the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Store     *store.Store
	Searcher  domain.Searcher
	Answerer  domain.Answerer
	Explainer domain.Explainer // optional, nil = no explain or follow-up
	Catalog   *Catalog         // optional, nil = English
	IDs       *MessageIDs      // optional, nil = fresh generator
	Bus       domain.EventBus  // optional, nil = no request.settled events
	Logger    *slog.Logger
	Clock     func() time.Time // optional, nil = time.Now
	Config    RetrievalConfig
}

// Orchestrator turns user utterances into store actions. It admits one
// request at a time and guarantees that every admitted request ends with
// exactly one assistant message and the loading flag reset.
type Orchestrator struct {
	deps     OrchestratorDeps
	inFlight atomic.Bool
}

// reply is what a successful branch produces.
type reply struct {
	content string
	sources []domain.CitationSource
}

// NewOrchestrator creates an orchestrator, filling optional deps with defaults.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Catalog == nil {
		deps.Catalog = NewCatalog(DefaultLocale)
	}
	if deps.IDs == nil {
		deps.IDs = NewMessageIDs()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	def := DefaultRetrievalConfig()
	if deps.Config.LiteralLimit <= 0 {
		deps.Config.LiteralLimit = def.LiteralLimit
	}
	if deps.Config.LiteralThreshold < 0 || deps.Config.LiteralThreshold > 1 {
		deps.Config.LiteralThreshold = def.LiteralThreshold
	}
	if deps.Config.PreviewChars <= 0 {
		deps.Config.PreviewChars = def.PreviewChars
	}
	return &Orchestrator{deps: deps}
}

// Busy reports whether a submission is currently being processed.
func (o *Orchestrator) Busy() bool {
	return o.inFlight.Load()
}

// Submit runs one conversational turn. Rejections (empty utterance, unknown
// mode, request already in flight) are returned before any action is
// dispatched. Otherwise the terminal assistant message is returned, together
// with the branch error when the turn failed. Cancelling ctx aborts the
// backend call and ends the turn on the failure path.
func (o *Orchestrator) Submit(ctx context.Context, utterance string, mode domain.RequestMode) (domain.ConversationMessage, error) {
	const op = "Orchestrator.Submit"

	text := strings.TrimSpace(utterance)
	if text == "" {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrEmptyUtterance, "")
	}
	if !mode.Valid() {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrInvalidMode, string(mode))
	}
	return o.turn(ctx, op, "orchestrator.submit", text, mode, func(ctx context.Context) (reply, error) {
		if mode == domain.ModeLiteralSearch {
			return o.literal(ctx, text)
		}
		return o.reasoning(ctx, text)
	})
}

// Explain asks the backend how the latest answer was derived from its
// sources. The request shows up in the conversation as a user message and
// ends like any other turn.
func (o *Orchestrator) Explain(ctx context.Context) (domain.ConversationMessage, error) {
	const op = "Orchestrator.Explain"
	if o.deps.Explainer == nil {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrInvalidInput, "explanations are not available")
	}
	prev, ok := LastTurn(o.deps.Store.State().Messages)
	if !ok {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrInvalidInput, "no answer to explain")
	}
	return o.turn(ctx, op, "orchestrator.explain", o.deps.Catalog.ExplainRequest(), domain.ModeReasoningQA, func(ctx context.Context) (reply, error) {
		exp, err := o.deps.Explainer.Explain(ctx, prev)
		if err != nil {
			return reply{}, err
		}
		if exp == nil {
			return reply{}, errors.New("empty explanation")
		}
		return reply{
			content: o.deps.Catalog.Explanation(exp.Text, exp.SourcesAnalyzed),
			sources: prev.Sources,
		}, nil
	})
}

// FollowUp answers question in the context of the latest question and answer.
// Without a previous turn it is an ordinary reasoning question.
func (o *Orchestrator) FollowUp(ctx context.Context, question string) (domain.ConversationMessage, error) {
	const op = "Orchestrator.FollowUp"
	text := strings.TrimSpace(question)
	if text == "" {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrEmptyUtterance, "")
	}
	if o.deps.Explainer == nil {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrInvalidInput, "follow-up questions are not available")
	}
	prev, ok := LastTurn(o.deps.Store.State().Messages)
	return o.turn(ctx, op, "orchestrator.follow_up", text, domain.ModeReasoningQA, func(ctx context.Context) (reply, error) {
		if !ok {
			return o.reasoning(ctx, text)
		}
		ans, err := o.deps.Explainer.FollowUp(ctx, text, prev)
		if err != nil {
			return reply{}, err
		}
		if ans == nil {
			return reply{}, errors.New("empty answer")
		}
		return reply{
			content: ans.Text,
			sources: NormalizeCitations(ans.Sources, o.deps.Logger),
		}, nil
	})
}

// LastTurn returns the most recent user question directly followed by an
// assistant answer, with the answer's sources.
func LastTurn(msgs []domain.ConversationMessage) (domain.Turn, bool) {
	for i := len(msgs) - 1; i > 0; i-- {
		if msgs[i].Role == domain.RoleAssistant && msgs[i-1].Role == domain.RoleUser {
			return domain.Turn{
				Question: msgs[i-1].Content,
				Answer:   msgs[i].Content,
				Sources:  msgs[i].Sources,
			}, true
		}
	}
	return domain.Turn{}, false
}

// turn admits one request, records text as the user message, runs branch and
// ends with exactly one assistant message.
func (o *Orchestrator) turn(ctx context.Context, op, spanName, text string, mode domain.RequestMode, branch func(context.Context) (reply, error)) (domain.ConversationMessage, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrRequestInFlight, "")
	}
	defer o.inFlight.Store(false)

	start := o.deps.Clock()
	// Store updates must land even when the caller has cancelled.
	stateCtx := context.WithoutCancel(ctx)
	// Uploads share the loading flag; Begin checks and sets it atomically.
	if _, ok := o.deps.Store.Begin(stateCtx,
		store.AddMessage{Message: o.newMessage(domain.RoleUser, text, nil, start)},
		store.SetError{},
	); !ok {
		return domain.ConversationMessage{}, domain.NewDomainError(op, domain.ErrRequestInFlight, "loading")
	}

	ctx, span := tracer.StartSpan(ctx, spanName,
		trace.WithAttributes(tracer.StringAttr("request.mode", string(mode))),
	)
	defer span.End()

	rep, err := o.run(ctx, mode, branch)

	var terminal domain.ConversationMessage
	if err != nil {
		terminal = o.fail(stateCtx, mode, err)
		tracer.RecordError(span, err)
	} else {
		terminal = o.succeed(stateCtx, rep)
		span.SetAttributes(tracer.IntAttr("request.sources", len(rep.sources)))
		tracer.SetOK(span)
	}
	o.settled(stateCtx, mode, err, o.deps.Clock().Sub(start))

	if err != nil {
		return terminal, domain.WrapOp(op, err)
	}
	return terminal, nil
}

// run executes branch. Panics in collaborators are converted into errors so
// the failure path still runs.
func (o *Orchestrator) run(ctx context.Context, mode domain.RequestMode, branch func(context.Context) (reply, error)) (rep reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.deps.Logger.Error("retrieval branch panicked", "mode", mode, "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
		if err != nil {
			err = fmt.Errorf("%w: %w", modeSentinel(mode), err)
		}
	}()
	return branch(ctx)
}

func (o *Orchestrator) literal(ctx context.Context, text string) (reply, error) {
	cfg := o.deps.Config
	res, err := o.deps.Searcher.Search(ctx, domain.SearchQuery{
		Query:     text,
		Limit:     cfg.LiteralLimit,
		Threshold: cfg.LiteralThreshold,
	})
	if err != nil {
		return reply{}, err
	}
	var sources []domain.CitationSource
	if res != nil {
		sources = NormalizeHits(res.Hits, o.deps.Logger)
	}
	if len(sources) == 0 {
		return reply{content: o.deps.Catalog.NoResults(text)}, nil
	}
	return reply{
		content: o.deps.Catalog.SearchSummary(text, sources, cfg.PreviewChars),
		sources: sources,
	}, nil
}

func (o *Orchestrator) reasoning(ctx context.Context, text string) (reply, error) {
	sessionID := o.deps.Store.SessionID()
	ans, err := o.deps.Answerer.Ask(ctx, text, sessionID)
	if err != nil {
		return reply{}, err
	}
	if ans == nil {
		return reply{}, errors.New("empty answer")
	}
	if ans.SessionID != "" && ans.SessionID != sessionID {
		o.deps.Logger.Debug("backend returned a different session id", "sent", sessionID, "got", ans.SessionID)
	}
	return reply{
		content: ans.Text,
		sources: NormalizeCitations(ans.Sources, o.deps.Logger),
	}, nil
}

func (o *Orchestrator) succeed(ctx context.Context, rep reply) domain.ConversationMessage {
	msg := o.newMessage(domain.RoleAssistant, rep.content, rep.sources, o.deps.Clock())
	o.deps.Store.Dispatch(ctx,
		store.AddMessage{Message: msg},
		store.SetLoading{Loading: false},
	)
	return msg
}

func (o *Orchestrator) fail(ctx context.Context, mode domain.RequestMode, err error) domain.ConversationMessage {
	raw := rawError(err)
	now := o.deps.Clock()
	code := domain.CodeLLMError
	if mode == domain.ModeLiteralSearch {
		code = domain.CodeSearchError
	}

	o.deps.Logger.Warn("retrieval failed", "mode", mode, "code", code, "error", err)

	msg := o.newMessage(domain.RoleAssistant, o.deps.Catalog.Failure(mode, raw), nil, now)
	o.deps.Store.Dispatch(ctx,
		store.AddMessage{Message: msg},
		store.SetError{Err: domain.NewStateError(code, raw.Error(), now)},
		store.SetLoading{Loading: false},
	)
	return msg
}

func (o *Orchestrator) settled(ctx context.Context, mode domain.RequestMode, err error, took time.Duration) {
	p := domain.RequestSettledPayload{Mode: mode, Outcome: "success", Duration: took.String()}
	if err != nil {
		p.Outcome = "failure"
		p.Code = domain.ErrorCodeOf(err)
	}
	o.deps.Logger.Info("request settled", "mode", mode, "outcome", p.Outcome, "duration", took)

	if o.deps.Bus == nil {
		return
	}
	payload, mErr := json.Marshal(p)
	if mErr != nil {
		return
	}
	o.deps.Bus.Publish(ctx, domain.Event{
		Type:      domain.EventRequestSettled,
		Timestamp: o.deps.Clock(),
		SessionID: o.deps.Store.SessionID(),
		Payload:   payload,
	})
}

func (o *Orchestrator) newMessage(role domain.Role, content string, sources []domain.CitationSource, at time.Time) domain.ConversationMessage {
	return domain.ConversationMessage{
		ID:        o.deps.IDs.Next(role, at),
		Role:      role,
		Content:   content,
		Timestamp: at,
		Sources:   sources,
	}
}

func modeSentinel(mode domain.RequestMode) error {
	if mode == domain.ModeLiteralSearch {
		return domain.ErrSearchFailed
	}
	return domain.ErrAnswerFailed
}

// rawError strips the mode sentinel added by run so the user sees the
// collaborator's own message.
func rawError(err error) error {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := u.Unwrap(); len(errs) == 2 {
			return errs[1]
		}
	}
	return err
}
