package negotiation

import (
	"time"

	"negotiation-platform/internal/classify"
	"negotiation-platform/internal/events"
)

// Negotiation is the central entity: one user-initiated request-and-call
// lifecycle. It is owned by the server process; clients only read projections
// of it.
//
// Invariants:
// - Result is present iff Status == completed.
// - Error is present iff Status == failed.
// - ProviderCallID is set before in_progress or completed is reached
//   (a placement failure may reach failed without one).
// - Phase only moves forward, except that failed is reachable from any phase.
type Negotiation struct {
	ID     string `json:"id"`
	Status Status `json:"status"`

	// Phase refines in_progress for user-facing progress display.
	Phase Phase `json:"phase"`

	UserMessage     string            `json:"userMessage"`
	Category        classify.Category `json:"category"`
	ReferenceNumber string            `json:"referenceNumber,omitempty"`
	AttachmentRef   string            `json:"attachmentRef,omitempty"`

	Customer Customer `json:"customer"`

	ProviderCallID string `json:"providerCallId,omitempty"`

	// ProviderCallStatus is the last raw status string observed from the
	// provider. Used only for phase inference and debugging.
	ProviderCallStatus string `json:"providerCallStatus,omitempty"`

	// DurationSeconds is the latest call duration reported by the provider.
	DurationSeconds int `json:"duration"`

	StartTime  time.Time `json:"startTime"`
	LastUpdate time.Time `json:"lastUpdate"`

	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`

	// Events is populated on snapshots only; the store does not persist it
	// on the record itself.
	Events []events.Event `json:"events,omitempty"`
}

// Terminal reports whether the negotiation can no longer be mutated.
func (n *Negotiation) Terminal() bool {
	return n.Status == StatusCompleted || n.Status == StatusFailed
}

// advancePhase applies the monotonic phase guard: a negotiation never moves
// to an earlier phase, but failed is reachable from anywhere.
func (n *Negotiation) advancePhase(p Phase) bool {
	if p == PhaseFailed {
		if n.Phase == PhaseFailed {
			return false
		}
		n.Phase = PhaseFailed
		return true
	}
	if phaseRank[p] <= phaseRank[n.Phase] {
		return false
	}
	n.Phase = p
	return true
}

type Status string

const (
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseDialing      Phase = "dialing"
	PhaseConnected    Phase = "connected"
	PhaseNegotiating  Phase = "negotiating"
	PhaseCompleting   Phase = "completing"
	PhaseFailed       Phase = "failed"
)

var phaseRank = map[Phase]int{
	PhaseInitializing: 0,
	PhaseDialing:      1,
	PhaseConnected:    2,
	PhaseNegotiating:  3,
	PhaseCompleting:   4,
}

// Customer holds the identity and category-specific fields collected at
// submission. PhoneNumber is stored in canonical E.164 form.
type Customer struct {
	FullName          string `json:"fullName"`
	PhoneNumber       string `json:"phoneNumber"`
	Email             string `json:"email,omitempty"`
	AppointmentTime   string `json:"appointmentTime,omitempty"`
	AppointmentAction string `json:"appointmentAction,omitempty"`
}

// Result is present only on completed negotiations.
//
// RealConfirmationCode is nil when Code was synthesized locally because
// nothing recognizable appeared in the transcript; clients use it to tell an
// authoritative code from a fallback one.
type Result struct {
	Outcome              string   `json:"outcome"`
	Code                 string   `json:"code"`
	RealConfirmationCode *string  `json:"realConfirmationCode"`
	RefundAmount         *float64 `json:"refundAmount,omitempty"`
	Transcript           string   `json:"transcript,omitempty"`

	CompletedAt time.Time `json:"completedAt"`
}
