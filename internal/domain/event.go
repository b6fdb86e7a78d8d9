package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// EventStateChanged is published after every store dispatch.
	EventStateChanged EventType = "state.changed"
	// EventRequestSettled is published once per accepted submission.
	EventRequestSettled EventType = "request.settled"
	// EventDocumentsChanged is published after uploads and removals.
	EventDocumentsChanged EventType = "documents.changed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Seq       uint64          `json:"seq"` // stamped by the bus; increases with every publish
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RequestSettledPayload describes how a submission ended.
type RequestSettledPayload struct {
	Mode     RequestMode `json:"mode"`
	Outcome  string      `json:"outcome"` // "success" or "failure"
	Code     ErrorCode   `json:"code,omitempty"`
	Duration string      `json:"duration"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers and returns its sequence number.
	Publish(ctx context.Context, event Event) uint64
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
