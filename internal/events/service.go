package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for negotiation events.
//
// It MUST be append-only; there are no update or delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ByNegotiation(ctx context.Context, negotiationID string) ([]Event, error)
}

// Service records the per-negotiation event timeline.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("events: invalid event")

func (s *Service) Record(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("events: repository not configured")
	}
	if e.NegotiationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// RecordPhaseChange logs a user-visible phase transition.
func (s *Service) RecordPhaseChange(ctx context.Context, negotiationID, phase, message string) error {
	return s.Record(ctx, Event{
		NegotiationID: negotiationID,
		Type:          TypePhaseChange,
		Phase:         phase,
		Message:       message,
	})
}

// Timeline returns all events for a negotiation in append order.
func (s *Service) Timeline(ctx context.Context, negotiationID string) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("events: repository not configured")
	}
	return s.repo.ByNegotiation(ctx, negotiationID)
}
