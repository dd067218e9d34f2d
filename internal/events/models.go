package events

import "time"

// Event is an immutable, append-only record of something that happened to a
// negotiation. The client renders these as the call-event timeline.
//
// Invariants:
// - Events are never updated or deleted.
// - negotiation_id is required.
// - Recording is best-effort; the state machine never blocks on event
//   failures.

type Event struct {
	ID            string `json:"id"`
	NegotiationID string `json:"negotiationId"`

	Type Type `json:"type"`

	// Phase is set for phase-change events.
	Phase string `json:"phase,omitempty"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

type Type string

const (
	TypeSubmitted   Type = "submitted"
	TypeCallPlaced  Type = "call_placed"
	TypePhaseChange Type = "phase_change"
	TypeCompleted   Type = "completed"
	TypeFailed      Type = "failed"
	TypeWebhook     Type = "webhook_result"
)
