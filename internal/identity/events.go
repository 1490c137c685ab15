package identity

import (
	"sync"
)

// EventType enumerates session lifecycle notifications.
type EventType string

const (
	// EventUserLoaded fires when a session is established or renewed.
	EventUserLoaded EventType = "user_loaded"

	// EventUserSignedOut fires when a session ends, whatever the reason.
	EventUserSignedOut EventType = "user_signed_out"

	// EventSilentRenewError fires when silent renewal fails and the session
	// has been revoked locally.
	EventSilentRenewError EventType = "silent_renew_error"
)

// Event carries a session lifecycle notification.
type Event struct {
	Type      EventType
	SessionID string
	UserID    string

	// Renewed distinguishes a UserLoaded fired by silent renewal from one
	// fired by a fresh login.
	Renewed bool

	Err error // set for EventSilentRenewError
}

// Events is a typed observer for session lifecycle notifications.
// Subscribe returns an unsubscribe func; callers own pairing the two with
// their component's lifetime so no handler outlives its owner.
type Events struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Event)
}

// NewEvents creates an empty event bus.
func NewEvents() *Events {
	return &Events{handlers: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns its unsubscribe func.
// Unsubscribing twice is harmless.
func (e *Events) Subscribe(handler func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers, id)
	}
}

// Emit delivers an event to all current subscribers, synchronously and in
// unspecified order. Handlers must not block.
func (e *Events) Emit(event Event) {
	e.mu.Lock()
	handlers := make([]func(Event), 0, len(e.handlers))
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}
