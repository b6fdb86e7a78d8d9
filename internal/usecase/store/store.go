package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"docchat/internal/domain"
)

// ChangedPayload is the payload of a state.changed event.
type ChangedPayload struct {
	Revision uint64   `json:"revision"`
	Actions  []string `json:"actions"`
}

// Store owns the conversation state. It is constructed explicitly and passed
// to the orchestrator and the UI; there is no package-level instance.
type Store struct {
	mu     sync.Mutex
	state  State
	closed bool

	// notifyMu serializes observer callbacks so they see revisions in order.
	notifyMu  sync.Mutex
	observers map[uint64]func(State)
	nextObs   uint64

	bus    domain.EventBus
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBus publishes a state.changed event after every dispatch.
func WithBus(bus domain.EventBus) Option {
	return func(s *Store) { s.bus = bus }
}

// WithLogger sets the logger used for dispatch tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the clock used to stamp published events.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store holding the initial state for sessionID.
func New(sessionID string, opts ...Option) *Store {
	s := &Store{
		state:     Initial(sessionID),
		observers: make(map[uint64]func(State)),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dispatch applies actions atomically and in order, then notifies observers
// and the bus once. It returns the resulting state. Dispatch after Close is
// ignored.
func (s *Store) Dispatch(ctx context.Context, actions ...Action) State {
	if len(actions) == 0 {
		return s.State()
	}
	st, _ := s.apply(ctx, nil, actions)
	return st
}

// Begin admits a request: when no request is in flight it applies actions
// followed by SetLoading{true} in one dispatch and returns true. Otherwise
// nothing changes and it returns false. The request owner must end it with
// SetLoading{false}.
func (s *Store) Begin(ctx context.Context, actions ...Action) (State, bool) {
	actions = append(actions[:len(actions):len(actions)], SetLoading{Loading: true})
	return s.apply(ctx, func(st State) bool { return !st.IsLoading }, actions)
}

// apply reduces actions when admit accepts the current state. The check and
// the reduction happen under one lock.
func (s *Store) apply(ctx context.Context, admit func(State) bool, actions []Action) (State, bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		st := s.state
		s.mu.Unlock()
		s.logger.Debug("dispatch after close ignored", "actions", actionNames(actions))
		return st, false
	}
	if admit != nil && !admit(s.state) {
		st := s.state
		s.mu.Unlock()
		s.logger.Debug("request refused, another is in flight", "actions", actionNames(actions))
		return st, false
	}
	s.state = ReduceAll(s.state, actions...)
	st := s.state
	observers := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	names := actionNames(actions)
	s.logger.Debug("state dispatch", "actions", names, "revision", st.Revision, "loading", st.IsLoading)

	for _, fn := range observers {
		fn(st)
	}
	s.publish(ctx, st, names)
	return st, true
}

func (s *Store) publish(ctx context.Context, st State, names []string) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ChangedPayload{Revision: st.Revision, Actions: names})
	if err != nil {
		s.logger.Warn("marshal state.changed payload", "error", err)
		return
	}
	s.bus.Publish(ctx, domain.Event{
		Type:      domain.EventStateChanged,
		Timestamp: s.now(),
		SessionID: st.SessionID,
		Payload:   payload,
	})
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLoading reports whether a request is in flight.
func (s *Store) IsLoading() bool {
	return s.State().IsLoading
}

// SessionID returns the conversation token.
func (s *Store) SessionID() string {
	return s.State().SessionID
}

// Subscribe registers fn to be called synchronously with every new state.
// Returns an unsubscribe function.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Close drops all observers and makes further dispatches no-ops.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.observers)
}

func actionNames(actions []Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name()
	}
	return names
}
