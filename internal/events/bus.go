// Package events carries session lifecycle and run progress notifications
// from the session manager to whoever is listening (logs, the chat TUI).
package events

import (
	"sync"
	"time"
)

// Type represents the type of a lifecycle event.
type Type string

const (
	SessionCreated    Type = "session_created"
	SessionReused     Type = "session_reused"
	SessionReset      Type = "session_reset"
	SessionReaped     Type = "session_reaped"
	RunStarted        Type = "run_started"
	RunPolled         Type = "run_polled"
	RunCompleted      Type = "run_completed"
	RunFailed         Type = "run_failed"
	FeedbackCompleted Type = "feedback_completed"
	FeedbackFailed    Type = "feedback_failed"
)

// Event represents a lifecycle event with associated data.
type Event struct {
	Type         Type
	Timestamp    time.Time
	SubmissionID string
	SessionID    string
	RunID        string
	Data         map[string]any
}

// Handler is a function that handles events.
type Handler func(Event)

// Bus manages event publication and subscription. A nil *Bus is valid and
// drops everything, so components can publish unconditionally.
type Bus struct {
	mu          sync.RWMutex
	handlers    map[Type][]Handler
	allHandlers []Handler
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], handler)
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Publish sends an event to all registered handlers. Handlers run
// synchronously on the publishing goroutine and must not block.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	specific := append([]Handler(nil), b.handlers[event.Type]...)
	all := append([]Handler(nil), b.allHandlers...)
	b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, handler := range specific {
		handler(event)
	}
	for _, handler := range all {
		handler(event)
	}
}
