// Package audit records the security-relevant events of the session-sharing
// protocol. Events are emitted from domain logic and kept transport-agnostic
// so sinks can fan out.
package audit

import (
	"context"
	"sync"
	"time"
)

// EventType names a protocol event.
type EventType string

const (
	EventLogin            EventType = "login"
	EventSyncLogin        EventType = "sync_login"
	EventLogout           EventType = "logout"
	EventCascadeLogout    EventType = "cascade_logout"
	EventSignatureFailure EventType = "signature_failure"
)

// Event captures one protocol action. SessionID stays server-internal, so an
// audit sink is as trusted as the session store.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	BrokerID  string    `json:"broker_id,omitempty"`
	LoginID   string    `json:"login_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Publisher delivers audit events. Implementations must not block the
// protocol path; failures are logged by the caller and never propagated.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                      { return nil }

// MemoryPublisher buffers events in process memory. Used in tests and in
// deployments without a broker.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *MemoryPublisher) Close() error { return nil }
